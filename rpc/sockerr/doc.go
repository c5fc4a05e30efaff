// Package sockerr classifies local socket failures into the few outcomes a
// caller of the relay client can act on: nobody is listening, access is
// denied, the peer closed the connection, or anything else.
//
// Classification is table driven. Platform error codes are checked first
// (socket-closed codes before not-found codes), then the portable kinds
// fs.ErrPermission and fs.ErrNotExist. The code tables live in build-tagged
// files, one per platform family, because the numeric values differ between
// platforms.
package sockerr
