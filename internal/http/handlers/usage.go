package handlers

import "net/http"

// UsageSession returns the in-process ledger summary. It reflects this
// process's lifetime only and is not a billing source.
func (a *App) UsageSession(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.Ledger.Summary())
}
