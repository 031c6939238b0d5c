// Package viewer exposes the viewer daemon over gRPC.
//
// The service is declared by hand with protobuf well-known types as request
// and response messages, so no generated code is involved. Domain values
// travel as google.protobuf.Struct or ListValue built from their JSON form.
package viewer
