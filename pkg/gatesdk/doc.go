// Package gatesdk is the client side of the iiifgate decision and token
// endpoints.
//
// The image server's delegate hook uses Client.PreAuthorize for every tile
// request: it pulls the token out of the request URI or the forwarded
// headers, collects cookies, and asks the gate for a verdict. Anything short
// of an explicit "authorized": true from the gate is a denial.
//
// Basic usage:
//
//	c := gatesdk.NewClient("https://wdb.example.org")
//	ok := c.PreAuthorize(ctx, gatesdk.RequestContext{
//		Identifier: "wdb/hdb/doc1/1.ptif",
//		RequestURI: "/iiif/3/wdb%2Fhdb%2Fdoc1%2F1.ptif/full/max/0/default.jpg?wdb_token=...",
//		ClientIP:   "203.0.113.5",
//		Cookies:    map[string]string{"PHPSESSID": "abc"},
//	})
package gatesdk
