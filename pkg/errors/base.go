package errors

import "google.golang.org/grpc/codes"

// 通用错误，服务代码 00，供各存储组件共用
var (
	ErrNotFound      = Register(New(MakeCode(ServiceCommon, CategoryResource, 0), 404, codes.NotFound, "Resource not found", "资源不存在"))
	ErrAlreadyExists = Register(New(MakeCode(ServiceCommon, CategoryConflict, 1), 409, codes.AlreadyExists, "Resource already exists", "资源已存在"))
	ErrDatabase      = Register(New(MakeCode(ServiceCommon, CategoryDatabase, 0), 500, codes.Internal, "Database error", "数据库错误"))
	ErrInternal      = Register(New(MakeCode(ServiceCommon, CategoryInternal, 0), 500, codes.Internal, "Internal error", "内部错误"))
)
