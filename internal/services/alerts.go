package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/config"
	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/models"
)

// telegramSender is the slice of *bot.Bot the dispatcher needs; tests swap
// in a recording stub.
type telegramSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error)
}

// AlertDispatcher pushes high-relevance targets to investors over Telegram.
// It sits strictly downstream of scoring: targets are already persisted by
// the time they reach here, and delivery failures are logged, never fatal.
type AlertDispatcher struct {
	cfg    config.AlertsConfig
	sender telegramSender
	logger *logrus.Logger
}

// NewAlertDispatcher initializes the Telegram bot when alerts are enabled
// and a token is configured. Without either, the dispatcher stays inert and
// DispatchTargets reports zero sends.
func NewAlertDispatcher(cfg config.AlertsConfig, logger *logrus.Logger) *AlertDispatcher {
	d := &AlertDispatcher{cfg: cfg, logger: logger}
	if !cfg.Enabled {
		return d
	}
	if cfg.TelegramBotToken == "" {
		logger.Warn("Alerts enabled without a Telegram bot token, dispatch disabled")
		return d
	}
	b, err := bot.New(cfg.TelegramBotToken)
	if err != nil {
		logger.WithError(err).Warn("Telegram bot initialization failed, dispatch disabled")
		return d
	}
	d.sender = b
	return d
}

// Enabled reports whether the dispatcher can actually deliver messages.
func (d *AlertDispatcher) Enabled() bool {
	return d.cfg.Enabled && d.sender != nil
}

// DispatchTargets sends one alert per eligible target and returns the number
// delivered. Eligible means the target's score clears the alert threshold
// and the investor has alerts enabled with a Telegram chat id on file.
func (d *AlertDispatcher) DispatchTargets(ctx context.Context, signal *models.MarketSignal, targets []*models.RelevanceTarget, investors []*models.Investor) int {
	if !d.Enabled() || signal == nil || len(targets) == 0 {
		return 0
	}

	byID := make(map[string]*models.Investor, len(investors))
	for _, inv := range investors {
		byID[inv.ID] = inv
	}

	minRelevance := decimal.NewFromFloat(d.cfg.MinRelevance)
	sent := 0
	for _, target := range targets {
		if target.RelevanceScore.LessThan(minRelevance) {
			continue
		}
		investor, ok := byID[target.InvestorID]
		if !ok {
			d.logger.WithField("investor_id", target.InvestorID).Debug("Target references an investor outside the scored population")
			continue
		}
		if !investor.AlertsEnabled || investor.TelegramChatID == nil {
			continue
		}

		_, err := d.sender.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    *investor.TelegramChatID,
			Text:      d.formatSignalAlert(signal, target, investor),
			ParseMode: tgmodels.ParseModeMarkdown,
		})
		if err != nil {
			d.logger.WithError(err).WithFields(logrus.Fields{
				"investor_id": investor.ID,
				"signal_key":  signal.SignalKey,
			}).Error("Alert delivery failed")
			continue
		}
		sent++
	}

	d.logger.WithFields(logrus.Fields{
		"signal_key": signal.SignalKey,
		"targets":    len(targets),
		"sent":       sent,
	}).Info("Alert dispatch finished")

	return sent
}

func (d *AlertDispatcher) formatSignalAlert(signal *models.MarketSignal, target *models.RelevanceTarget, investor *models.Investor) string {
	header := "📈 *Market Signal Alert*\n\n"
	switch signal.SignalType {
	case models.SignalSupplySpike:
		header = "📦 *Supply Spike Alert*\n\n"
	case models.SignalPriceCutCluster:
		header = "✂️ *Price Cut Cluster Alert*\n\n"
	case models.SignalRentChange:
		header = "🏠 *Rent Movement Alert*\n\n"
	case models.SignalTransactionVolume:
		header = "📊 *Transaction Volume Alert*\n\n"
	}

	message := header
	message += fmt.Sprintf("Hi %s, a signal matches your mandate:\n\n", investor.Name)
	message += fmt.Sprintf("*Area:* %s\n", signal.GeoName)
	message += fmt.Sprintf("*Segment:* %s\n", signal.Segment)
	message += fmt.Sprintf("*Metric:* %s\n", signal.Metric)
	message += fmt.Sprintf("*Current:* %s\n", signal.CurrentValue.StringFixed(2))
	message += fmt.Sprintf("*Change:* %s over %s\n", signal.FormatDelta(), signal.Timeframe)
	message += fmt.Sprintf("*Relevance:* %s", target.RelevanceScore.StringFixed(2))
	if len(target.MatchedDimensions) > 0 {
		message += fmt.Sprintf(" (matched: %s)", strings.Join(target.MatchedDimensions, ", "))
	}
	message += "\n"

	return message
}
