// Package message parses and serializes the HDF5 object header messages a
// volume dataset needs: dataspace, datatype, fill value, data layout, filter
// pipeline, links, group info and symbol tables.
//
// Parsing is tolerant of message types it does not understand; they come
// back as *Unknown so a header can still be walked. Serialization always
// emits the newest message version this package knows, which keeps files
// readable by HDF5 1.10 and later.
package message
