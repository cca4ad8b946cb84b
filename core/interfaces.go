package core

// Notifier is an interface to receive record change notifications from
// generated endpoints and the record store
type Notifier interface {
	Notify(applicationID int64, table string, operation Operation, payload []byte)
}
