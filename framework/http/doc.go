// Package http adapts net/http requests and responses to the request
// pipeline: parameter extraction, response framing, uploaded files and the
// HTTPException error family.
//
// Import it under an alias to keep net/http available:
//
//	import gohttp "github.com/zengzjie/nest-source/framework/http"
package http
