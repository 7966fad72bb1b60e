package errors

import "google.golang.org/grpc/codes"

// Agent 服务代码: 21
// 会话以 FAILED 结束时，引擎返回以下错误之一。
var (
	// 请求参数错误 (类别 01)
	ErrEmptyQuestion = Register(New(MakeCode(ServiceAgent, CategoryRequest, 1), 400, codes.InvalidArgument, "Question must not be empty", "问题不能为空"))

	// 模型输出无法解析 (类别 07)
	ErrParseFailure = Register(New(MakeCode(ServiceAgent, CategoryInternal, 1), 502, codes.Internal, "Model output could not be parsed", "模型输出无法解析"))

	// 外部服务失败 (类别 10)
	ErrGenerationFailed = Register(New(MakeCode(ServiceAgent, CategoryNetwork, 1), 502, codes.Unavailable, "Generation service failed", "生成服务调用失败"))
	ErrRetrievalFailed  = Register(New(MakeCode(ServiceAgent, CategoryNetwork, 2), 502, codes.Unavailable, "Retrieval service failed", "检索服务调用失败"))

	// 超时与取消 (类别 11)
	ErrCallTimeout     = Register(New(MakeCode(ServiceAgent, CategoryTimeout, 1), 504, codes.DeadlineExceeded, "External call timed out", "外部调用超时"))
	ErrSessionTimeout  = Register(New(MakeCode(ServiceAgent, CategoryTimeout, 2), 504, codes.DeadlineExceeded, "Session exceeded its time limit", "会话超时"))
	ErrSessionCanceled = Register(New(MakeCode(ServiceAgent, CategoryTimeout, 3), 499, codes.Canceled, "Session canceled", "会话已取消"))
)
