// Package editorial implements the stage handlers that move a chapter through
// drafting, structural review, revision, line editing, the specialist review
// passes, summarization, and story-state propagation.
//
// Every handler follows the same shape: load the chapter, render the stage's
// prompt, call the completion service, and write the result back to the
// manuscript. The completion response is checkpointed before it is applied,
// so a job interrupted after an expensive call resumes from the recorded text
// instead of paying for the call again.
//
// Handlers return errors and never change job status. The review handler is
// the one stage that enqueues follow-up work: when its feedback calls for
// rework it inserts a revision job for the same chapter, and the revision
// handler later reads that feedback back through the checkpoint handoff.
package editorial
