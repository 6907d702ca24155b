// Package kernel is a small contract used to exercise the kernel through
// the analyzer.
package kernel

type Account string

type Env struct{ caller Account }

func (e *Env) Caller() Account { return e.caller }

func SameAccount(a, b Account) bool { return a == b }

type Contract struct {
	Owner   Account
	Total   int
	Members map[Account]bool
}

func (c *Contract) assertOwner(e *Env) {
	if !SameAccount(e.Caller(), c.Owner) {
		panic("not owner")
	}
}

func (c *Contract) Withdraw(e *Env, amount int) {
	c.assertOwner(e)
	c.Total -= amount
}

func (c *Contract) Deposit(amount int) {
	c.Total += amount
}

func (c *Contract) Balance() int {
	return c.Total
}
