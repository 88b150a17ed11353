package connection

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"

	"github.com/langchou/fleetbridge/internal/models"
)

// 连接生命周期事件常量
const (
	EventAuthorize     = "authorize"
	EventVerifyOK      = "verify_ok"
	EventVerifyFailed  = "verify_failed"
	EventRefreshFailed = "refresh_failed"
	EventDisconnect    = "disconnect"
)

// newLifecycle 为连接创建生命周期状态机
// 当前状态来自数据库，事件触发后的新状态再写回数据库
func newLifecycle(current string) *fsm.FSM {
	if current == "" {
		current = models.ConnectionStatusUnauthenticated
	}

	return fsm.NewFSM(
		current,
		fsm.Events{
			// 成功完成 OAuth 回调，任何状态都可以重新授权
			{Name: EventAuthorize, Src: []string{
				models.ConnectionStatusUnauthenticated,
				models.ConnectionStatusActive,
				models.ConnectionStatusError,
				models.ConnectionStatusTokenExpired,
				models.ConnectionStatusDisconnected,
			}, Dst: models.ConnectionStatusActive},

			// 校验通过，故障状态恢复
			{Name: EventVerifyOK, Src: []string{
				models.ConnectionStatusActive,
				models.ConnectionStatusError,
				models.ConnectionStatusTokenExpired,
			}, Dst: models.ConnectionStatusActive},

			// 服务商判定 token 无效或接口异常
			{Name: EventVerifyFailed, Src: []string{
				models.ConnectionStatusActive,
				models.ConnectionStatusError,
				models.ConnectionStatusTokenExpired,
			}, Dst: models.ConnectionStatusError},

			// 刷新失败，需要用户重新授权；已过期的连接再次失败仍停留在过期态
			{Name: EventRefreshFailed, Src: []string{
				models.ConnectionStatusActive,
				models.ConnectionStatusError,
				models.ConnectionStatusTokenExpired,
			}, Dst: models.ConnectionStatusTokenExpired},

			// 用户主动断开
			{Name: EventDisconnect, Src: []string{
				models.ConnectionStatusUnauthenticated,
				models.ConnectionStatusActive,
				models.ConnectionStatusError,
				models.ConnectionStatusTokenExpired,
			}, Dst: models.ConnectionStatusDisconnected},
		},
		fsm.Callbacks{},
	)
}

// transition 对连接当前状态触发事件，返回新状态
// 事件合法但状态不变（如过期态再次刷新失败）不算错误
func transition(current, event string) (string, error) {
	machine := newLifecycle(current)
	if err := machine.Event(context.Background(), event); err != nil {
		var same fsm.NoTransitionError
		if errors.As(err, &same) {
			return machine.Current(), nil
		}
		return current, fmt.Errorf("transition %s from %s: %w", event, current, err)
	}
	return machine.Current(), nil
}
