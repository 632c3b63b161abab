package complaint

// SetRandomCode replaces the code generator and returns a func restoring it.
func SetRandomCode(f func() string) (restore func()) {
	orig := randomCode
	randomCode = f
	return func() { randomCode = orig }
}
