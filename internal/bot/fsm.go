package bot

import (
	"sync"

	"github.com/sentinelvps/sentinel/internal/billing"
	"github.com/sentinelvps/sentinel/internal/fleet"
)

// flow tags which multi-step conversation a form belongs to.
type flow int

const (
	flowNone flow = iota
	flowAddServer
	flowAddPayment
	flowEditField
	flowPassword
	flowExec
)

// Add-server steps.
const (
	stepServerName = iota
	stepServerHost
	stepServerPort
	stepServerUser
	stepServerAuth
	stepServerSecret
)

// Add-payment steps.
const (
	stepPaymentDescription = iota
	stepPaymentAmount
	stepPaymentDueDate
	stepPaymentServer
)

// form is the in-flight state of one conversation. Forms live in
// memory only and are simply overwritten when a new flow starts, so an
// abandoned form costs nothing.
type form struct {
	flow flow
	step int

	server  fleet.Server
	payment billing.Payment

	// Target of edit/password/exec flows.
	serverID int64
	field    string
}

// formKey scopes a form to one participant in one chat.
type formKey struct {
	ChatID int64
	UserID int64
}

// forms holds all in-flight conversation forms.
type forms struct {
	mu sync.Mutex
	m  map[formKey]*form
}

func newForms() *forms {
	return &forms{m: make(map[formKey]*form)}
}

func (f *forms) get(key formKey) *form {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.m[key]
}

func (f *forms) put(key formKey, fm *form) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.m[key] = fm
}

func (f *forms) clear(key formKey) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.m, key)
}
