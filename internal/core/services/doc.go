// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The sync engine and scheduler keep the search index consistent with the
// primary store; the search, autocomplete and analytics services serve reads.
//
// Services are pure Go with no CGO or backend-specific dependencies.
package services
