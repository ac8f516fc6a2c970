// Package mirror ranks download hosts by probing each with a small ranged
// request. Rankings are never cached: mirror health changes too quickly for
// a stored answer to be trusted by the next download.
package mirror
