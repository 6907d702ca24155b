package pattern

// Built-in patterns for NEAR contracts compiled from Rust, matched against
// mangled symbol names.
var (
	// PredecessorAccountID matches the caller identity accessor.
	PredecessorAccountID = MustRegexp(`near_sdk[0-9]+environment[0-9]+env[0-9]+predecessor_account_id`)
	// AccountIDEq matches equality comparison of account ids.
	AccountIDEq = MustRegexp(`near_sdk\.\.types\.\.account_id\.\.AccountId.+core\.\.cmp\.\.PartialEq`)

	// LibraryLocation matches source files of the toolchain and of
	// dependencies. An empty file name also matches.
	LibraryLocation = MustRegexp(`(^/rustc)|(^/cargo)|(^/root/.cargo)|(^/home/.+/.cargo)|(^$)`)
	// LibraryFunction matches functions defined in the toolchain.
	LibraryFunction = MustRegexp(`(^/cargo)|(^/rustc)`)

	// Intrinsic matches compiler intrinsics, which are never call-graph
	// starting points.
	Intrinsic = MustRegexp(`llvm`)
	// MemCopy matches the memory copy intrinsic.
	MemCopy = Prefix("llvm.memcpy")

	// Coercion matches the two-argument `x.into()` shape.
	Coercion = Contains("core..convert..Into")
	// Comparison matches comparison trait calls.
	Comparison = Contains("core..cmp")
	// Unpack matches account data deserialisation.
	Unpack = MustRegexp(`solana_program[0-9]+program_pack[0-9]+Pack[0-9]+unpack`)

	// CollectionMutation matches mutating methods of near_sdk collections.
	CollectionMutation = MustRegexp(`near_sdk[0-9]+collections([0-9a-zA-Z]|_+)+(\$|[0-9a-zA-Z])+(insert_raw|remove_raw|remove|insert|clear|iter|extend|as_vector|keys|values|range|push|pop|replace|swap_remove)`)
	// CollectionAccessor matches non-mutating methods of near_sdk collections.
	CollectionAccessor = MustRegexp(`near_sdk[0-9]+collections([0-9a-zA-Z]|_+)+(\$|[0-9a-zA-Z])+(len|is_empty|new|contains|to_vec|get|floor_key|ceil_key)`)
	// PointerDrop matches destructor glue.
	PointerDrop = MustRegexp(`core[0-9]+ptr[0-9]+drop_in_place`)
	// Clone matches clone implementations.
	Clone = Contains("clone")

	// ExtCall matches cross-contract function calls.
	ExtCall = MustRegexp(`(.+near_sdk[0-9]+promise[0-9]+Promise[0-9]+function_call(_weight)?[0-9]+)`)
)

// Tagged type names of Solana accounts, whose owner field has index 3.
const (
	SolanaAccountInfo = "solana_program::account_info::AccountInfo"
	SolanaPubkey      = "solana_program::pubkey::Pubkey"
	AnchorAccountInfo = "anchor_lang::prelude::AccountInfo"
	AnchorPubkey      = "anchor_lang::prelude::Pubkey"
)
