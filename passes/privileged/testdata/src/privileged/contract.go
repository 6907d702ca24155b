package privileged

type Account string

type Env struct{ caller Account }

func (e *Env) Caller() Account { return e.caller }

func SameAccount(a, b Account) bool { return a == b }

type Contract struct {
	Owner Account
	Total int
}

func (c *Contract) assertOwner(e *Env) { // want `assertOwner is privileged`
	if !SameAccount(e.Caller(), c.Owner) {
		panic("not owner")
	}
}

func (c *Contract) Withdraw(e *Env, amount int) { // want `Withdraw is privileged`
	c.assertOwner(e)
	c.Total -= amount
}

func (c *Contract) Deposit(amount int) {
	c.Total += amount
}

// Pause stops deposits. The owner check lives in the host.
//
//nearflow:privileged
func (c *Contract) Pause() { // want `Pause is privileged`
	c.Total = 0
}

// Emergency relies on the host check of Pause.
func (c *Contract) Emergency() { // want `Emergency is privileged`
	c.Pause()
}

// IsOwner compares without reading the caller.
func (c *Contract) IsOwner(a Account) bool {
	return SameAccount(a, c.Owner)
}
