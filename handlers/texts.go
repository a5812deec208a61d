package handlers

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	helpText = "**Что я умею**\n" +
		"/start — приветствие\n" +
		"/subscribe — как оформить подписку\n" +
		"/get_trial — бесплатный пробный доступ\n" +
		"/status — статус подписки\n\n" +
		"С активной подпиской просто напиши вопрос или задачу, и я передам его нейросети."

	subscribeText = "Оформление платной подписки скоро появится. " +
		"А пока можно попробовать бота бесплатно: /get_trial"

	noSubscriptionText = "🔒 У тебя нет активной подписки.\n" +
		"Оформить: /subscribe, попробовать бесплатно: /get_trial"

	alreadyEntitledText = "У тебя уже есть активная подписка. Проверить статус: /status"
	trialFailedText     = "Не удалось выдать доступ. Попробуй позже."
	unknownCommandText  = "Неизвестная команда. Список команд: /help"

	// Discord rejects messages longer than this many characters.
	maxMessageLength = 2000

	dateLayout = "02.01.2006 15:04"
)

func welcomeText(name string) string {
	return fmt.Sprintf("Привет, **%s**! 👋\n\n"+
		"Я бот с доступом к нейросети. Я помогу тебе *генерировать текст*, *общаться с нейросетью* и много чего еще!\n\n"+
		"Для начала работы и доступа ко всем возможностям потребуется подписка.\n"+
		"➡️ Чтобы узнать больше о подписке и как ее оформить, используй команду /subscribe.\n"+
		"➡️ Попробовать бесплатно: /get_trial.\n"+
		"➡️ Если у тебя уже есть подписка, просто напиши мне свой вопрос или задачу!\n\n"+
		"Нужна помощь? Команда /help всегда к твоим услугам.", name)
}

func trialGrantedText(period time.Duration, until time.Time) string {
	return fmt.Sprintf("🎉 Пробный доступ на %s активирован! Действует до %s (UTC).\nПросто напиши мне свой вопрос.",
		formatPeriod(period), until.UTC().Format(dateLayout))
}

func statusActiveText(plan string, until time.Time) string {
	return fmt.Sprintf("✅ Подписка активна: **%s**, действует до %s (UTC).", plan, until.UTC().Format(dateLayout))
}

func formatPeriod(d time.Duration) string {
	if d >= 24*time.Hour && d%(24*time.Hour) == 0 {
		return fmt.Sprintf("%d дн.", int(d/(24*time.Hour)))
	}
	if d >= time.Hour && d%time.Hour == 0 {
		return fmt.Sprintf("%d ч.", int(d/time.Hour))
	}
	return d.String()
}

// splitMessage cuts text into chunks of at most limit runes, preferring
// line breaks as cut points.
func splitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		if i := lastIndexRune(runes[:limit], '\n'); i > 0 {
			cut = i
		}
		chunk := strings.TrimSpace(string(runes[:cut]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		runes = runes[cut:]
		for len(runes) > 0 && runes[0] == '\n' {
			runes = runes[1:]
		}
	}
	if rest := strings.TrimSpace(string(runes)); rest != "" {
		chunks = append(chunks, rest)
	}
	return chunks
}

func lastIndexRune(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}
