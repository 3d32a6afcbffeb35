// Package glue holds the small, stateless helpers that tag-management glue
// scripts share: placeholder title detection, ID shortening, cookie and URL
// parameter handling, and dotted object paths.
//
// Each helper is also exposed to JavaScript validators and key generators,
// see the jsfunc package.
package glue
