// Package tcp serves lobby participants over raw TCP connections.
//
// Each connection carries newline-delimited text frames in both directions.
// The first frame is the participant's intent ("create" or "join"); after
// that the lobby reads choices from the connection until it leaves.
//
// Every Conn owns a buffered outbound queue drained by a writer goroutine,
// so Send never blocks on the network. Close stops accepting sends, lets the
// writer flush what is queued and unblocks any pending Receive at once.
//
// Usage:
//
//	srv := tcp.NewServer(":3001", svc, tcp.Options{}, log)
//	if err := srv.Listen(); err != nil {
//		return err
//	}
//	go srv.Serve(ctx)
//	...
//	err := srv.Shutdown(ctx)
package tcp
