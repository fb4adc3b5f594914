// Package engine runs one match of Cidade Dorme.
//
// An Engine owns the GameState and walks it through the phase cycle
// Preparing, Night, DayDiscussion, DayVoting and back to Night, until the
// WinEvaluator returns a terminal result or the round limit sends the match
// into the Confrontation. Night submissions wait in the ActionRegistry and are
// resolved together by the NightResolver; day votes are tallied by the
// VoteResolver.
//
// All state is guarded by the engine lock. Notices, mutes and the final result
// leave through the outbox after the lock is released, so a slow or failing
// collaborator never stalls a phase transition.
package engine
