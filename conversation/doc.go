// Package conversation houses implementations of core.ConversationStore.
//
// Histories are bounded: once a peer's history exceeds MaxTurns the oldest
// turns are dropped in whole user/assistant pairs, so the retained window
// always starts on a pair boundary. Histories live only in process memory.
package conversation
