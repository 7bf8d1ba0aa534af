package errors

import "google.golang.org/grpc/codes"

// 新闻服务代码: 21 (业务服务范围 20-79)
// 错误码格式: AABBCCC
// - AA: 21 (news)
// - BB: 类别代码
// - CCC: 序号

var (
	// 请求参数错误 (类别 01)
	ErrNewsValidation = Register(New(MakeCode(ServiceNews, CategoryRequest, 1), 400, codes.InvalidArgument, "Validation failed", "参数校验失败"))
	ErrInvalidFeedURL = Register(New(MakeCode(ServiceNews, CategoryRequest, 2), 400, codes.InvalidArgument, "Invalid feed URL", "订阅源地址无效"))

	// 资源错误 (类别 04)
	ErrArticleNotFound      = Register(New(MakeCode(ServiceNews, CategoryResource, 1), 404, codes.NotFound, "Article not found", "文章不存在"))
	ErrSourceNotFound       = Register(New(MakeCode(ServiceNews, CategoryResource, 2), 404, codes.NotFound, "Source not found", "订阅源不存在"))
	ErrTagNotFound          = Register(New(MakeCode(ServiceNews, CategoryResource, 3), 404, codes.NotFound, "Tag not found", "标签不存在"))
	ErrInsufficientArticles = Register(New(MakeCode(ServiceNews, CategoryResource, 4), 404, codes.FailedPrecondition, "Insufficient articles for analysis", "文章数量不足"))

	// 外部服务错误 (类别 10 - Network)
	ErrFetchFailed      = Register(New(MakeCode(ServiceNews, CategoryNetwork, 1), 502, codes.Unavailable, "Feed fetch failed", "订阅源抓取失败"))
	ErrEmbeddingFailed  = Register(New(MakeCode(ServiceNews, CategoryNetwork, 2), 502, codes.Unavailable, "Embedding failed", "向量化失败"))
	ErrGenerationFailed = Register(New(MakeCode(ServiceNews, CategoryNetwork, 3), 502, codes.Unavailable, "Generation failed", "内容生成失败"))

	// 内部错误 (类别 07)
	ErrIndexFailed = Register(New(MakeCode(ServiceNews, CategoryInternal, 1), 500, codes.Internal, "Vector index operation failed", "向量索引操作失败"))
)
