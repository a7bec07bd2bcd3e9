// Package dialogue forwards caller transcripts to the dialogue webhook and
// returns the agent's reply text. A webhook that fails or answers with an
// empty body yields an empty reply, which the turn pipeline treats as
// "nothing to say".
package dialogue
