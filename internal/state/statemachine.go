package state

import "fmt"

// State 回合状态
const (
	StateOpen    = "open"    // 下注中(now < ends_at)
	StateClosed  = "closed"  // 已封盘开奖(终态，winning_number 已落定)
	StateSettled = "settled" // 已结算(所有注单派彩完成)
)

// Event 回合事件
const (
	EvtClose  = "close"  // 截止时间到，封盘并开奖
	EvtSettle = "settle" // 派彩完成
)

// NextState 根据当前状态与事件计算下一个状态，非法转换报错
// 同一 round_id 的 closed 不可逆：重复 close 属于非法转换，由调用方按幂等处理
func NextState(cur, evt string) (string, error) {
	switch cur {
	case StateOpen:
		if evt == EvtClose {
			return StateClosed, nil
		}
	case StateClosed:
		if evt == EvtSettle {
			return StateSettled, nil
		}
	}
	return cur, fmt.Errorf("invalid transition: %s --%s--> ?", cur, evt)
}
