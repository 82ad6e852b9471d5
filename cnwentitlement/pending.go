package cnwentitlement

// pendingLicense buffers a ciphertext that could not be validated yet
// because the workspace identity is unknown. At most one is held.
type pendingLicense struct {
	ciphertext string
}

func (p *pendingLicense) set(ciphertext string) {
	p.ciphertext = ciphertext
}

func (p *pendingLicense) has() bool {
	return p.ciphertext != ""
}

func (p *pendingLicense) is(ciphertext string) bool {
	return p.has() && p.ciphertext == ciphertext
}

func (p *pendingLicense) clear() {
	p.ciphertext = ""
}

// take returns the held ciphertext and clears it.
func (p *pendingLicense) take() string {
	c := p.ciphertext
	p.ciphertext = ""
	return c
}
