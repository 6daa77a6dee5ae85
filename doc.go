// Package couchcall is a client for the CouchDB HTTP API.
//
// Every operation issues exactly one HTTP request and yields either a decoded
// payload or an [*Error] carrying the HTTP status, the server's short error
// code, and its human-readable reason. Operations are ordinary blocking
// methods which accept a [context.Context]. To run one in the background and
// receive its outcome once, along with the elapsed request time, use [Go] or
// [Dispatch].
//
//	client, err := couchcall.New("http://localhost:5984")
//	if err != nil {
//		panic(err)
//	}
//	db := client.DB("spec_db")
//	if _, err := db.Create(ctx); err != nil {
//		panic(err)
//	}
//	res, err := db.SaveDoc(ctx, map[string]interface{}{"_id": "123", "Name": "X"})
//
// Documents are plain JSON objects, represented by [Document]. Writes never
// mutate the caller's value; the updated document, carrying the new _id and
// _rev, is returned in [DocResult].
package couchcall // import "github.com/go-kivik/couchcall"
