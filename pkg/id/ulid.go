// Package id 生成会话 ID。
package id

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ULIDGenerator 使用 ULID 算法生成时间可排序的唯一 ID。
//
// 格式: 01AN4Z07BY79KA1307SR9X4MV3
//   - 前 10 字符: 时间戳 (毫秒)
//   - 后 16 字符: 随机熵
type ULIDGenerator struct {
	entropy io.Reader
	mu      sync.Mutex
}

// NewULIDGenerator 创建新的 ULID 生成器。
// 使用单调熵源，同一毫秒内生成的 ID 也保持有序。
func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Generate 生成一个 ULID 字符串。
func (g *ULIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
}

// GenerateN 生成 n 个 ULID。
func (g *ULIDGenerator) GenerateN(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = g.Generate()
	}
	return ids
}

// Time 返回 ULID 中编码的时间。
func Time(s string) (time.Time, error) {
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()), nil
}

// IsValidULID 报告 s 是否为合法 ULID。
func IsValidULID(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}

var defaultGenerator = NewULIDGenerator()

// NewULID 使用默认生成器生成 ULID。
func NewULID() string {
	return defaultGenerator.Generate()
}
