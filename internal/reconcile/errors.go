package reconcile

// ReconcileError is a reconciliation failure that must stop the deploy:
// no deployable name could be established, or a rename needed to proceed
// was refused by the service. It never falls back to creating a new item,
// which could duplicate one that already exists under another name.
type ReconcileError struct {
	Msg string
	Err error
}

func (e *ReconcileError) Error() string {
	if e.Err != nil {
		return "reconcile: " + e.Msg + ": " + e.Err.Error()
	}

	return "reconcile: " + e.Msg
}

func (e *ReconcileError) Unwrap() error {
	return e.Err
}
