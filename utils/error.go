package utils

// Error is a constant-friendly error type; packages declare their sentinels with it
// so they can be compared with errors.Is after wrapping.
type Error string

func (e Error) Error() string {
	return string(e)
}

func PanicOnError(err error) {
	if err != nil {
		panic(err)
	}
}
