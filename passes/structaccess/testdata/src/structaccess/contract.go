package structaccess

type Contract struct {
	Owner  string
	Total  int
	Paused bool
}

func (c *Contract) Balance() int {
	return c.Total // want `read of structaccess.Contract field 1`
}

func (c *Contract) SetTotal(v int) {
	c.Total = v // want `write of structaccess.Contract field 1`
}

func (c *Contract) IsPaused() bool {
	return c.Paused // want `read of structaccess.Contract field 2`
}

// Deposit reads and writes Total through separate field addresses.
func (c *Contract) Deposit(amount int) {
	c.Total += amount // want `read of structaccess.Contract field 1` `write of structaccess.Contract field 1`
}

func (c *Contract) OwnerName() string {
	return c.Owner
}

func (c *Contract) Pause() {
	//nearflow:ignore
	c.Paused = true
}

// Reset is audited.
//
// nearflow:ignore
func (c *Contract) Reset() {
	c.Total = 0
	c.Paused = false
}

func (c *Contract) Audit() int {
	//nearflow:ignore // want `unused nearflow:ignore directive`
	return len(c.Owner)
}
