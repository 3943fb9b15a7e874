// Package trace records the raw bus transactions of an OPC session to a
// file of concatenated CBOR items, one opc.Frame each, and reads them back.
//
// Example:
//
//	rec, err := trace.Create("frames.cbor")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rec.Close()
//
//	sess, err := opc.New(conn, protocol.ModelN3, opc.WithTracer(rec.Record))
//
// Frames are decoded with a Reader:
//
//	r, _ := trace.Open("frames.cbor", trace.Filter{Operation: "histogram"})
//	for {
//	    f, err := r.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    ...
//	}
package trace
