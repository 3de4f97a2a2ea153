// Package pipes holds the built-in pipes: parsers for route, query and body
// values, a default-value pipe, struct validation and uploaded file checks.
//
// Pipes pass nil through unchanged, except where noted, so that an absent
// optional value is not reported as malformed:
//
//	routing.Get("/:id", (*CatsController).FindOne).
//	    Params(pipeline.Param("id", pipes.ParseInt()))
package pipes
