package complexloop

type Account struct {
	ID      string
	Balance int
}

type Contract struct {
	Accounts []*Account
	Ledger   map[string]int
}

func (c *Contract) credit(a *Account, amount int) { a.Balance += amount }

func (c *Contract) record(a *Account) { c.Ledger[a.ID] = a.Balance }

// Distribute pays every account, growing with the number of accounts.
func (c *Contract) Distribute(amount int) {
	for _, a := range c.Accounts { // want `loop with \d+ instructions in Distribute`
		c.credit(a, amount)
		c.record(a)
		c.credit(a, amount)
		c.record(a)
		c.credit(a, amount)
		c.record(a)
		c.credit(a, amount)
		c.record(a)
		c.credit(a, amount)
		c.record(a)
		c.credit(a, amount)
		c.record(a)
		c.credit(a, amount)
		c.record(a)
		c.credit(a, amount)
		c.record(a)
	}
}

// Total stays under the bound.
func (c *Contract) Total() int {
	total := 0
	for _, a := range c.Accounts {
		total += a.Balance
	}
	return total
}

// Sweep nests a large loop; the outer statement is reported once.
func (c *Contract) Sweep(rounds int) {
	for i := 0; i < rounds; i++ { // want `loop with \d+ instructions in Sweep`
		for _, a := range c.Accounts {
			c.credit(a, i)
			c.record(a)
			c.credit(a, i)
			c.record(a)
			c.credit(a, i)
			c.record(a)
			c.credit(a, i)
			c.record(a)
			c.credit(a, i)
			c.record(a)
			c.credit(a, i)
			c.record(a)
		}
	}
}

// Audit is reviewed.
//
// nearflow:ignore
func (c *Contract) Audit() {
	for _, a := range c.Accounts {
		c.credit(a, 0)
		c.record(a)
		c.credit(a, 0)
		c.record(a)
		c.credit(a, 0)
		c.record(a)
		c.credit(a, 0)
		c.record(a)
		c.credit(a, 0)
		c.record(a)
		c.credit(a, 0)
		c.record(a)
		c.credit(a, 0)
		c.record(a)
		c.credit(a, 0)
		c.record(a)
	}
}
