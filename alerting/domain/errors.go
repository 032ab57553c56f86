package domain

import "fmt"

// DeliveryError é a falha terminal do dispatcher, depois de esgotar as tentativas.
type DeliveryError struct {
	Component string
	Attempts  int
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s: delivery failed after %d attempt(s): %v", e.Component, e.Attempts, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
