package memory

import "fmt"

func errDuplicate(constraint string) error {
	return fmt.Errorf("duplicate key value violates unique constraint %q", constraint)
}

func errState(msg string) error {
	return fmt.Errorf("memory store: %s", msg)
}
