package ir

import "slices"

// =============================================================================
// Control Flow
// =============================================================================

// Loop is a cycle of the control-flow graph: a strongly connected set of
// blocks. Nested loops belong to the loop enclosing them.
type Loop struct {
	// Head is the block entered from outside the loop.
	Head *Block
	// Blocks are the loop's blocks in block order.
	Blocks []*Block
}

// Size returns the number of instructions in the loop.
func (l *Loop) Size() int {
	n := 0
	for _, b := range l.Blocks {
		n += len(b.instrs)
	}
	return n
}

// Pos returns the first known location in the loop, trying the head first.
func (l *Loop) Pos() Position {
	for _, i := range l.Head.instrs {
		if i.Pos.IsValid() {
			return i.Pos
		}
	}
	for _, b := range l.Blocks {
		for _, i := range b.instrs {
			if i.Pos.IsValid() {
				return i.Pos
			}
		}
	}
	return Position{}
}

// Loops returns the loops of fn ordered by head.
//
// A loop is a strongly connected component with more than one block, or a
// block that branches to itself. Components are found with Tarjan's
// algorithm; an if/else merge is acyclic and never a loop.
func (fn *Function) Loops() []*Loop {
	t := &tarjan{index: make(map[*Block]int), low: make(map[*Block]int), onStack: make(map[*Block]bool)}
	for _, b := range fn.blocks {
		if _, seen := t.index[b]; !seen {
			t.visit(b)
		}
	}

	var loops []*Loop
	for _, scc := range t.sccs {
		if len(scc) == 1 && !slices.Contains(scc[0].succs, scc[0]) {
			continue
		}
		slices.SortFunc(scc, func(a, b *Block) int { return a.index - b.index })
		loops = append(loops, &Loop{Head: loopHead(scc), Blocks: scc})
	}
	slices.SortFunc(loops, func(a, b *Loop) int { return a.Head.index - b.Head.index })
	return loops
}

// loopHead returns the first block of scc with a predecessor outside it.
func loopHead(scc []*Block) *Block {
	for _, b := range scc {
		for _, p := range b.preds {
			if !slices.Contains(scc, p) {
				return b
			}
		}
	}
	return scc[0]
}

type tarjan struct {
	next    int
	index   map[*Block]int
	low     map[*Block]int
	onStack map[*Block]bool
	stack   []*Block
	sccs    [][]*Block
}

func (t *tarjan) visit(b *Block) {
	t.index[b] = t.next
	t.low[b] = t.next
	t.next++
	t.stack = append(t.stack, b)
	t.onStack[b] = true

	for _, succ := range b.succs {
		if _, seen := t.index[succ]; !seen {
			t.visit(succ)
			t.low[b] = min(t.low[b], t.low[succ])
		} else if t.onStack[succ] {
			t.low[b] = min(t.low[b], t.index[succ])
		}
	}

	if t.low[b] != t.index[b] {
		return
	}
	var scc []*Block
	for {
		top := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		t.onStack[top] = false
		scc = append(scc, top)
		if top == b {
			break
		}
	}
	t.sccs = append(t.sccs, scc)
}

// LoopBlocks returns the blocks of fn that lie inside a loop.
func (fn *Function) LoopBlocks() map[*Block]bool {
	loop := make(map[*Block]bool)
	for _, l := range fn.Loops() {
		for _, b := range l.Blocks {
			loop[b] = true
		}
	}
	return loop
}

// InLoop reports whether instr executes inside a loop of its function.
func (i *Instr) InLoop() bool {
	if i.block == nil {
		return false
	}
	return i.block.fn.LoopBlocks()[i.block]
}
