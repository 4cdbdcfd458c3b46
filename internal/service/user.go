package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	chelper "github.com/mahirlaaj1310/Play-Earn/common/helper"
	"github.com/mahirlaaj1310/Play-Earn/internal/config"
	infmysql "github.com/mahirlaaj1310/Play-Earn/internal/infra/mysql"
	"github.com/mahirlaaj1310/Play-Earn/internal/model"

	decimal "github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// 玩家账户业务：注册、登录、余额与投注历史查询

var (
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrPlayerNotFound     = errors.New("player not found")
)

type UserService interface {
	// Register 注册新玩家并赠送初始余额
	Register(ctx context.Context, username, password string) (*model.Player, error)
	// Login 校验用户名密码
	Login(ctx context.Context, username, password string) (*model.Player, error)
	// Balance 查询余额
	Balance(ctx context.Context, username string) (decimal.Decimal, error)
	// History 查询投注历史（roundID 为 0 时不过滤回合）
	History(ctx context.Context, username string, roundID int64, limit int) ([]model.BetRecord, error)
}

type userService struct{}

func NewUserService() UserService { return &userService{} }

// Register 注册玩家
// 初始余额不直接写在玩家行上，而是以 deposit 账务入账，保证账本完整可对账
func (s *userService) Register(ctx context.Context, username, password string) (*model.Player, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	cfg := config.Get()
	starting, err := decimal.NewFromString(cfg.Game.StartingBalance)
	if err != nil {
		starting = decimal.NewFromInt(1000)
	}

	txCtx := ctx
	if _, has := ctx.Deadline(); !has {
		c, cancel := context.WithTimeout(ctx, defaultTxTimeout)
		txCtx = c
		defer cancel()
	}
	tx, err := infmysql.SQLX().BeginTxx(txCtx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	p := &model.Player{
		Username:     username,
		PasswordHash: string(hash),
		Balance:      decimal.Zero,
		Status:       1,
	}
	if err := p.Insert(txCtx, tx); err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}

	// 初始余额入账（bill_no 以玩家ID构造，重放安全）
	after, err := CreditPlayer(txCtx, tx, p.ID, starting, LedgerEntry{
		BillNo:  depositBillNo(p.ID),
		BizType: model.LedgerBizDeposit,
		Remark:  "starting balance",
	})
	if err != nil && !errors.Is(err, ErrLedgerDuplicate) {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	p.Balance = after
	return p, nil
}

// Login 校验凭证；任何失败统一返回 ErrInvalidCredentials，不泄露用户是否存在
func (s *userService) Login(ctx context.Context, username, password string) (*model.Player, error) {
	p, err := model.GetPlayerByUsername(ctx, infmysql.SQLX(), username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if p.Status != 1 {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return p, nil
}

// Balance 查询玩家当前余额
func (s *userService) Balance(ctx context.Context, username string) (decimal.Decimal, error) {
	balance, err := model.GetPlayerBalance(ctx, infmysql.SQLX(), username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, ErrPlayerNotFound
		}
		return decimal.Zero, err
	}
	return balance, nil
}

// History 查询玩家投注历史（按下注时间倒序）
func (s *userService) History(ctx context.Context, username string, roundID int64, limit int) ([]model.BetRecord, error) {
	p, err := model.GetPlayerByUsername(ctx, infmysql.SQLX(), username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, err
	}
	return model.ListPlayerBets(ctx, infmysql.SQLX(), p.ID, roundID, limit)
}

// depositBillNo 初始入账账单号：DEP{UserID}
// 每个玩家仅一笔初始入账，账本唯一键天然防重放
func depositBillNo(userID int64) string {
	return fmt.Sprintf("DEP%d", userID)
}

// 便于控制器层统一格式化余额
func FormatBalance(b decimal.Decimal) string { return chelper.TrimDecimal(b) }
