package helper

import (
	"sync"
	"time"

	"golang.org/x/exp/rand"
)

var (
	rngOnce sync.Once
	rng     *rand.Rand
	rngMu   sync.Mutex
)

func source() *rand.Rand {
	rngOnce.Do(func() {
		rng = rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
	})
	return rng
}

// GenerateRandNum 在 [min, max] 闭区间内均匀取一个整数
// 开奖公平性只要求均匀分布，不要求抗预测（庄家即随机源）
func GenerateRandNum(min, max int) int {
	if max < min {
		min, max = max, min
	}
	r := source()
	rngMu.Lock()
	n := min + r.Intn(max-min+1)
	rngMu.Unlock()
	return n
}
