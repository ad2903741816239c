package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"sproutbot/internal/config"
	"sproutbot/internal/services"
)

type Linker interface {
	BeginLink(ctx context.Context, userID int64) (string, error)
}

type Exchanger interface {
	Quote(ctx context.Context, userID int64) (balance, rate, max int64, err error)
	Exchange(ctx context.Context, userID, amount int64) (services.ExchangeResult, error)
}

type Profiler interface {
	Me(ctx context.Context, userID int64) (services.MeSummary, error)
	Balance(ctx context.Context, userID int64) (int64, error)
}

// Commands turns chat commands into reply text. Parsing and wording live
// here; all decisions live in the services.
type Commands struct {
	cfg       config.Config
	linker    Linker
	exchanger Exchanger
	profiler  Profiler
	log       *logrus.Logger
}

func NewCommands(cfg config.Config, linker Linker, exchanger Exchanger, profiler Profiler, log *logrus.Logger) *Commands {
	return &Commands{cfg: cfg, linker: linker, exchanger: exchanger, profiler: profiler, log: log}
}

// Route dispatches a raw message text. Non-commands and unknown commands
// get a short help reply; empty return means no reply at all.
func (c *Commands) Route(ctx context.Context, userID int64, text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	fields := strings.Fields(text)
	command := fields[0]
	// strip the @botname suffix used in group mentions
	if i := strings.Index(command, "@"); i > 0 {
		command = command[:i]
	}
	args := strings.TrimSpace(strings.TrimPrefix(text, fields[0]))

	switch command {
	case "/bind":
		return c.Bind(ctx, userID)
	case "/exchange":
		return c.Exchange(ctx, userID, args)
	case "/me":
		return c.Me(ctx, userID)
	case "/balance":
		return c.Balance(ctx, userID)
	case "/verify":
		return c.Verify(ctx, userID)
	case "/start", "/help":
		return c.help()
	default:
		return c.help()
	}
}

func (c *Commands) help() string {
	return "🌱 Sprout assistant\n\n" +
		"/bind — link your site account\n" +
		"/exchange <amount> — convert points to site points\n" +
		"/me — your profile\n" +
		"/balance — your point balance\n" +
		"/verify — verification status"
}

func (c *Commands) Bind(ctx context.Context, userID int64) string {
	url, err := c.linker.BeginLink(ctx, userID)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrNotRegistered):
		return "❌ You are not registered yet."
	case errors.Is(err, services.ErrBlocked):
		return "🚫 Your account is blocked."
	case errors.Is(err, services.ErrAlreadyLinked):
		return "✅ Your account is already linked to a site account. Use /me to see it."
	case errors.Is(err, services.ErrConfigNotReady):
		return "⚠️ Linking is temporarily unavailable. Please try again later."
	default:
		c.log.WithError(err).WithField("user_id", userID).Error("bind command failed")
		return "❌ Something went wrong. Please try again."
	}
	minutes := int(c.cfg.BindTokenTTL.Minutes())
	return fmt.Sprintf(
		"🔗 Open this link to connect your site account:\n\n%s\n\n⏳ The link is valid for %d minutes and works once.\n🎁 Bind reward: +%d points",
		url, minutes, c.cfg.BindReward,
	)
}

func (c *Commands) Exchange(ctx context.Context, userID int64, args string) string {
	amount, parseErr := strconv.ParseInt(args, 10, 64)
	if args == "" || parseErr != nil {
		return c.exchangeUsage(ctx, userID)
	}

	result, err := c.exchanger.Exchange(ctx, userID, amount)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrNotRegistered):
		return "❌ You are not registered yet."
	case errors.Is(err, services.ErrBlocked):
		return "🚫 Your account is blocked."
	case errors.Is(err, services.ErrNotLinked):
		return "🔗 Link your site account first with /bind."
	case errors.Is(err, services.ErrInvalidAmount):
		return "❌ The amount must be a positive number."
	case errors.Is(err, services.ErrAmountTooLarge):
		return fmt.Sprintf("❌ You can exchange at most %d points at a time.", c.cfg.ExchangeMax)
	case errors.Is(err, services.ErrInsufficientFunds):
		return "❌ Not enough points. Check /balance."
	case errors.Is(err, services.ErrConfigNotReady):
		return "⚠️ Exchange is temporarily unavailable. Please try again later."
	case errors.Is(err, services.ErrReconciliation):
		return "⚠️ The site was credited but your local balance could not be updated. Operators have been notified; please do not retry this exchange."
	default:
		c.log.WithError(err).WithField("user_id", userID).Error("exchange command failed")
		return "❌ Could not reach the site. Nothing was deducted; please try again."
	}

	reply := fmt.Sprintf(
		"✅ Exchange complete!\n\n💸 Deducted: %d points\n🌐 Site credited: %d points\n💰 Remaining balance: %d points",
		result.Debited, result.SitePoints, result.Balance,
	)
	if result.SiteBalanceKnown {
		reply += fmt.Sprintf("\n🏦 Site balance: %d points", result.SiteBalance)
	}
	return reply
}

func (c *Commands) exchangeUsage(ctx context.Context, userID int64) string {
	balance, rate, max, err := c.exchanger.Quote(ctx, userID)
	if errors.Is(err, services.ErrNotRegistered) {
		return "❌ You are not registered yet."
	}
	if err != nil {
		c.log.WithError(err).WithField("user_id", userID).Error("exchange quote failed")
		return "❌ Something went wrong. Please try again."
	}
	return fmt.Sprintf(
		"Usage: /exchange <amount>\n\n💰 Your balance: %d points\n📈 Rate: %d point(s) per site point\n📊 Max per exchange: %d points",
		balance, rate, max,
	)
}

func (c *Commands) Me(ctx context.Context, userID int64) string {
	summary, err := c.profiler.Me(ctx, userID)
	if errors.Is(err, services.ErrNotRegistered) {
		return "❌ You are not registered yet."
	}
	if err != nil {
		c.log.WithError(err).WithField("user_id", userID).Error("me command failed")
		return "❌ Something went wrong. Please try again."
	}

	var b strings.Builder
	name := summary.User.FullName
	if name == "" {
		name = summary.User.Username
	}
	fmt.Fprintf(&b, "👤 %s\n💰 Balance: %d points\n", name, summary.User.Balance)
	if !summary.Linked {
		b.WriteString("🔗 Site account: not linked. Use /bind to connect one.")
		return b.String()
	}
	b.WriteString("🔗 Site account: linked")
	if summary.SiteProfile != nil {
		fmt.Fprintf(&b, "\n🌐 Site name: %s\n👥 Site invites: %d",
			summary.SiteProfile.DisplayName, summary.SiteProfile.InviteCount)
	}
	return b.String()
}

func (c *Commands) Balance(ctx context.Context, userID int64) string {
	balance, err := c.profiler.Balance(ctx, userID)
	if errors.Is(err, services.ErrNotRegistered) {
		return "❌ You are not registered yet."
	}
	if err != nil {
		c.log.WithError(err).WithField("user_id", userID).Error("balance command failed")
		return "❌ Something went wrong. Please try again."
	}
	return fmt.Sprintf("💰 Your balance: %d points", balance)
}

// Verify is a placeholder; manual verification has not moved over yet.
func (c *Commands) Verify(ctx context.Context, userID int64) string {
	summary, err := c.profiler.Me(ctx, userID)
	if errors.Is(err, services.ErrNotRegistered) {
		return "❌ You are not registered yet."
	}
	if err != nil {
		c.log.WithError(err).WithField("user_id", userID).Error("verify command failed")
		return "❌ Something went wrong. Please try again."
	}
	if summary.User.Blocked {
		return "🚫 Your account is blocked."
	}
	return "🛠 Verification is coming soon."
}
