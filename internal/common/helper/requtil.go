package helper

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	beegocontext "github.com/beego/beego/v2/server/web/context"
)

// IsJSONContentType 判断是否为 JSON 请求
func IsJSONContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.Contains(ct, "json")
}

// 金额格式校验：非负，最多两位小数（预编译正则）
var moneyRe = regexp.MustCompile(`^(?:0|[1-9]\d*)(?:\.\d{1,2})?$`)

// IsMoneyFormat 判断金额格式
func IsMoneyFormat(s string) bool {
	return moneyRe.MatchString(strings.TrimSpace(s))
}

// 用户名格式校验：3~32 位字母数字下划线
var usernameRe = regexp.MustCompile(`^[A-Za-z0-9_]{3,32}$`)

// IsValidUsername 判断用户名格式
func IsValidUsername(s string) bool {
	return usernameRe.MatchString(s)
}

// 默认输入保护参数
const (
	defaultJSONMaxBytes int64         = 1 << 20 // 1MB
	defaultParseTimeout time.Duration = 1 * time.Second
)

type deadlineReader struct {
	r        io.Reader
	deadline time.Time
}

func (dr *deadlineReader) Read(p []byte) (int, error) {
	if time.Now().After(dr.deadline) {
		return 0, fmt.Errorf("read timeout")
	}
	return dr.r.Read(p)
}

// jsonBodyReader 在 JSON 分支下为请求体增加大小限制与解析超时保护
func jsonBodyReader(ctx *beegocontext.Context) io.Reader {
	lr := io.LimitReader(ctx.Request.Body, defaultJSONMaxBytes)
	return &deadlineReader{r: lr, deadline: time.Now().Add(defaultParseTimeout)}
}

// GetTraceID 统一提取 trace_id：优先从中间件注入的数据取，其次从常见请求头降级
func GetTraceID(ctx *beegocontext.Context) string {
	if v := ctx.Input.GetData("trace_id"); v != nil {
		return fmt.Sprint(v)
	}
	if h := strings.TrimSpace(ctx.Input.Header("X-Trace-ID")); h != "" {
		return h
	}
	if h := strings.TrimSpace(ctx.Input.Header("Trace-Id")); h != "" {
		return h
	}
	return ""
}

// parseByContentType 按 Content-Type 选择解析函数，减少重复 if/else 分支
func parseByContentType[T any](ctx *beegocontext.Context,
	jsonParser func(io.Reader) (T, bool, string),
	formParser func(*beegocontext.Context) (T, bool, string),
) (T, bool, string) {
	ct := ctx.Input.Header("Content-Type")
	if IsJSONContentType(ct) {
		return jsonParser(jsonBodyReader(ctx))
	}
	return formParser(ctx)
}

// BetParsed 为解析后的投注入参（与控制器/服务层解耦）
type BetParsed struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	RoundId        int64  `json:"round_id"`
	BetNumber      int    `json:"bet_number"`
	BetAmount      string `json:"bet_amount"`
	IdempotencyKey string `json:"idempotency_key"`
}

// ParseBetFromJSON 解析 JSON 到 BetParsed。失败返回 false 与错误消息。
func ParseBetFromJSON(r io.Reader) (BetParsed, bool, string) {
	var out BetParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return BetParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

// ParseBetFromForm 从表单读取字段并做强校验，返回 BetParsed。失败返回 false 与可读错误信息。
func ParseBetFromForm(ctx *beegocontext.Context) (BetParsed, bool, string) {
	var out BetParsed
	out.Username = strings.TrimSpace(ctx.Input.Query("username"))
	out.Password = ctx.Input.Query("password")
	if out.Username == "" || out.Password == "" {
		return BetParsed{}, false, "missing required fields: username/password"
	}

	if rs := strings.TrimSpace(ctx.Input.Query("round_id")); rs != "" {
		v, err := strconv.ParseInt(rs, 10, 64)
		if err != nil {
			return BetParsed{}, false, "round_id must be integer"
		}
		out.RoundId = v
	}

	ns := strings.TrimSpace(ctx.Input.Query("bet_number"))
	if ns == "" {
		return BetParsed{}, false, "bet_number required"
	}
	n, err := strconv.Atoi(ns)
	if err != nil {
		return BetParsed{}, false, "bet_number must be integer"
	}
	out.BetNumber = n

	out.BetAmount = strings.TrimSpace(ctx.Input.Query("bet_amount"))
	if out.BetAmount == "" || !IsMoneyFormat(out.BetAmount) {
		return BetParsed{}, false, "bet_amount must be numeric with up to 2 decimals"
	}

	out.IdempotencyKey = strings.TrimSpace(ctx.Input.Query("idempotency_key"))
	if out.IdempotencyKey == "" {
		return BetParsed{}, false, "idempotency_key required"
	}

	return out, true, ""
}

// ValidateBet 对通用字段做二次校验（适用于 JSON 与 FORM）。失败返回 false 与错误消息。
// 数字范围与金额上下限属于业务规则，由服务层校验；这里只挡明显非法输入
func ValidateBet(in *BetParsed) (bool, string) {
	if in.Username == "" || in.Password == "" || strings.TrimSpace(in.BetAmount) == "" || in.IdempotencyKey == "" {
		return false, "missing or invalid fields"
	}
	// 额外长度保护，避免异常超长输入
	if len(in.Username) > 32 || len(in.Password) > 128 || len(in.IdempotencyKey) > 64 || len(in.BetAmount) > 32 {
		return false, "invalid request"
	}
	if in.RoundId < 0 {
		return false, "round_id must be non-negative"
	}
	if !IsMoneyFormat(in.BetAmount) {
		return false, "bet_amount must be numeric with up to 2 decimals"
	}
	return true, ""
}

// ParseAndValidateBet 按 Content-Type 自动解析并做统一校验
func ParseAndValidateBet(ctx *beegocontext.Context) (BetParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseBetFromJSON, ParseBetFromForm)
	if !ok {
		return BetParsed{}, false, msg
	}
	if ok, msg := ValidateBet(&out); !ok {
		return BetParsed{}, false, msg
	}
	return out, true, ""
}

// -------- 注册/登录 helpers --------

type CredentialsParsed struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func ParseCredentialsFromJSON(r io.Reader) (CredentialsParsed, bool, string) {
	var out CredentialsParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return CredentialsParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

func ParseCredentialsFromForm(ctx *beegocontext.Context) (CredentialsParsed, bool, string) {
	var out CredentialsParsed
	out.Username = strings.TrimSpace(ctx.Input.Query("username"))
	out.Password = ctx.Input.Query("password")
	return out, true, ""
}

// ValidateCredentials 统一校验用户名与口令的基本格式
func ValidateCredentials(in *CredentialsParsed) (bool, string) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" || in.Password == "" {
		return false, "username and password required"
	}
	if !IsValidUsername(in.Username) {
		return false, "username must be 3-32 alphanumeric characters"
	}
	if len(in.Password) < 6 || len(in.Password) > 128 {
		return false, "password must be 6-128 characters"
	}
	return true, ""
}

// ParseAndValidateCredentials 按 Content-Type 自动解析并校验
func ParseAndValidateCredentials(ctx *beegocontext.Context) (CredentialsParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseCredentialsFromJSON, ParseCredentialsFromForm)
	if !ok {
		return CredentialsParsed{}, false, msg
	}
	if ok, msg := ValidateCredentials(&out); !ok {
		return CredentialsParsed{}, false, msg
	}
	return out, true, ""
}

// -------- 历史查询 helpers --------

// ParseHistoryQuery 解析投注历史查询参数（round_id/limit 均可选）
func ParseHistoryQuery(ctx *beegocontext.Context) (roundID int64, limit int, ok bool, msg string) {
	if rs := strings.TrimSpace(ctx.Input.Query("round_id")); rs != "" {
		v, err := strconv.ParseInt(rs, 10, 64)
		if err != nil || v < 0 {
			return 0, 0, false, "round_id must be non-negative integer"
		}
		roundID = v
	}
	limit = 20
	if ls := strings.TrimSpace(ctx.Input.Query("limit")); ls != "" {
		v, err := strconv.Atoi(ls)
		if err != nil || v <= 0 {
			return 0, 0, false, "limit must be positive integer"
		}
		limit = v
	}
	return roundID, limit, true, ""
}
