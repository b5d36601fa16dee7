// Package review manages the human review queue for versions submitted to the
// central tier. Decisions are single-shot: a pending record is decided exactly
// once, and a competing reviewer observes a conflict rather than overwriting.
package review
