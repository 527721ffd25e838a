package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fairyhunter13/bridgeos/internal/adapter/transport/telegram"
	"github.com/fairyhunter13/bridgeos/internal/config"
	"github.com/fairyhunter13/bridgeos/internal/domain"
	obsctx "github.com/fairyhunter13/bridgeos/internal/observability"
	"github.com/fairyhunter13/bridgeos/internal/usecase"
)

// pollErrorPause is how long the loop sleeps after a failed poll before
// trying again.
const pollErrorPause = 3 * time.Second

// Poller is the inbound side of the chat transport.
type Poller interface {
	GetUpdates(ctx context.Context, offset int64, pollTimeout time.Duration) ([]telegram.Update, error)
}

// convStep is one stage of the registration conversation.
type convStep int

const (
	stepRole convStep = iota + 1
	stepLanguage
	stepGender
	stepIndustry
	stepFeedback
)

// conversation is the in-memory state of one user's multi-step dialog.
// State is per process; a restart just re-asks.
type conversation struct {
	step       convStep
	role       domain.Role
	language   string
	gender     string
	inviteCode string
}

// BotLoop drives one bot slot: it long-polls for updates, de-duplicates
// them, and routes each message through the services.
type BotLoop struct {
	Cfg     config.Config
	Catalog config.Catalog
	Slot    int

	Poller Poller
	Dedup  domain.Deduper

	Identity      usecase.IdentityService
	Connections   usecase.ConnectionService
	Messages      usecase.MessageService
	Tasks         usecase.TaskService
	Subscriptions usecase.SubscriptionService
	Extraction    usecase.ExtractionService
	Feedback      usecase.FeedbackService
	Transports    domain.TransportSet

	PollTimeout time.Duration

	mu      sync.Mutex
	pending map[int64]*conversation
}

// Run polls until the context is cancelled. Poll failures pause and retry;
// a failed update is logged and skipped, never fatal.
func (b *BotLoop) Run(ctx context.Context) error {
	slog.Info("bot loop starting", slog.Int("bot_slot", b.Slot))
	var offset int64
	for {
		select {
		case <-ctx.Done():
			slog.Info("bot loop stopping", slog.Int("bot_slot", b.Slot))
			return ctx.Err()
		default:
		}
		updates, err := b.Poller.GetUpdates(ctx, offset, b.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("poll failed", slog.Int("bot_slot", b.Slot), slog.Any("error", err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pollErrorPause):
			}
			continue
		}
		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			b.handleUpdate(ctx, u)
		}
	}
}

func (b *BotLoop) handleUpdate(ctx context.Context, u telegram.Update) {
	if u.Message == nil || u.Message.Text == "" {
		return
	}
	lg := slog.Default().With(slog.Int64("update_id", u.UpdateID), slog.Int("bot_slot", b.Slot))
	ctx = obsctx.ContextWithLogger(ctx, lg)
	ctx = obsctx.ContextWithUpdateID(ctx, u.UpdateID)

	if b.Dedup != nil {
		seen, err := b.Dedup.Seen(ctx, u.UpdateID)
		if err != nil {
			// Cache trouble must not drop messages; worst case a
			// redelivery is processed twice.
			lg.Warn("dedup unavailable", slog.Any("error", err))
		} else if seen {
			lg.Debug("duplicate update skipped")
			return
		}
	}

	msg := u.Message
	if err := b.Identity.UpsertUser(ctx, domain.User{
		UserID:      msg.From.ID,
		DisplayName: strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName),
	}); err != nil {
		lg.Error("user upsert failed", slog.Int64("user_id", msg.From.ID), slog.Any("error", err))
	}

	if err := b.route(ctx, msg); err != nil {
		lg.Error("update not handled", slog.Int64("user_id", msg.From.ID), slog.Any("error", err))
	}
}

func (b *BotLoop) route(ctx context.Context, msg *telegram.IncomingMessage) error {
	userID := msg.From.ID
	text := strings.TrimSpace(msg.Text)

	if conv := b.conversation(userID); conv != nil && !strings.HasPrefix(text, "/") {
		return b.advanceConversation(ctx, msg, conv, text)
	}

	switch cmd, arg := splitCommand(text); cmd {
	case "/start":
		return b.handleStart(ctx, msg, arg)
	case "/status":
		return b.handleStatus(ctx, userID)
	case "/tasks":
		return b.handleTaskList(ctx, userID)
	case "/done":
		return b.handleTaskDone(ctx, msg, arg)
	case "/daily":
		return b.handleDaily(ctx, userID)
	case "/add_worker":
		return b.handleAddWorker(ctx, userID)
	case "/disconnect":
		return b.handleDisconnect(ctx, userID)
	case "/reset":
		return b.handleReset(ctx, userID)
	case "/subscribe":
		return b.handleSubscribe(ctx, userID)
	case "/portal":
		return b.handlePortal(ctx, userID)
	case "/feedback":
		b.setConversation(userID, &conversation{step: stepFeedback})
		return b.reply(ctx, userID, "Tell me what you think. Your next message goes straight to the team.")
	case "/help":
		return b.reply(ctx, userID, helpText)
	}

	role, err := b.Identity.Role(ctx, userID)
	if err != nil {
		return err
	}
	if role == domain.RoleNone {
		return b.reply(ctx, userID, "You are not registered yet. Send /start to begin.")
	}

	if role == domain.RoleManager && strings.HasPrefix(text, "**") {
		return b.handleTaskCreate(ctx, userID, strings.TrimSpace(strings.TrimPrefix(text, "**")))
	}
	return b.handleRelay(ctx, userID, role, text)
}

const helpText = "Send any text and it reaches the other side, translated.\n" +
	"** <task> creates a task (managers).\n" +
	"/tasks lists open tasks. /done <n> completes one (workers).\n" +
	"/daily pulls action items from the last 24 hours (managers).\n" +
	"/status shows your connections. /add_worker invites another worker.\n" +
	"/disconnect ends the connection on this bot. /reset clears your profile.\n" +
	"/subscribe upgrades. /portal manages billing. /feedback reaches the team."

// splitCommand separates "/cmd arg" into its command and argument. Bot
// suffixes like "/start@bridge_one_bot" are stripped.
func splitCommand(text string) (string, string) {
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	cmd, arg, _ := strings.Cut(text, " ")
	if at := strings.Index(cmd, "@"); at > 0 {
		cmd = cmd[:at]
	}
	return cmd, strings.TrimSpace(arg)
}

func (b *BotLoop) handleStart(ctx context.Context, msg *telegram.IncomingMessage, arg string) error {
	userID := msg.From.ID
	invite := strings.TrimPrefix(arg, "invite_")
	if invite == arg {
		invite = ""
	}

	role, err := b.Identity.Role(ctx, userID)
	if err != nil {
		return err
	}

	if role == domain.RoleWorker && invite != "" {
		return b.redeemInvite(ctx, msg, invite)
	}
	if role != domain.RoleNone {
		return b.reply(ctx, userID, "Welcome back. Send /status to see where you stand, or /help for commands.")
	}

	conv := &conversation{step: stepRole, inviteCode: invite}
	if invite != "" {
		// A deep link means this person was invited as a worker.
		conv.role = domain.RoleWorker
		conv.step = stepLanguage
		b.setConversation(userID, conv)
		return b.reply(ctx, userID, "Welcome! Which language do you prefer?\n"+strings.Join(b.Catalog.Languages, ", "))
	}
	b.setConversation(userID, conv)
	return b.reply(ctx, userID, "Welcome to BridgeOS. Are you a manager or a worker? Reply with one word.")
}

func (b *BotLoop) advanceConversation(ctx context.Context, msg *telegram.IncomingMessage, conv *conversation, text string) error {
	userID := msg.From.ID
	switch conv.step {
	case stepRole:
		switch strings.ToLower(text) {
		case "manager":
			conv.role = domain.RoleManager
		case "worker":
			conv.role = domain.RoleWorker
		default:
			return b.reply(ctx, userID, "Please reply 'manager' or 'worker'.")
		}
		conv.step = stepLanguage
		b.setConversation(userID, conv)
		return b.reply(ctx, userID, "Which language do you prefer?\n"+strings.Join(b.Catalog.Languages, ", "))

	case stepLanguage:
		if !b.Catalog.HasLanguage(text) {
			return b.reply(ctx, userID, "Please pick one of:\n"+strings.Join(b.Catalog.Languages, ", "))
		}
		conv.language = text
		conv.step = stepGender
		b.setConversation(userID, conv)
		return b.reply(ctx, userID, "How should messages address you? Reply 'male', 'female' or 'skip'.")

	case stepGender:
		switch strings.ToLower(text) {
		case "male", "female":
			conv.gender = strings.ToLower(text)
		case "skip":
			conv.gender = ""
		default:
			return b.reply(ctx, userID, "Reply 'male', 'female' or 'skip'.")
		}
		if conv.role == domain.RoleManager {
			conv.step = stepIndustry
			b.setConversation(userID, conv)
			return b.reply(ctx, userID, "What industry do you work in?\n"+strings.Join(b.Catalog.IndustryKeys(), ", "))
		}
		return b.finishWorkerRegistration(ctx, msg, conv)

	case stepIndustry:
		key := strings.ToLower(text)
		if !b.Catalog.HasIndustry(key) {
			return b.reply(ctx, userID, "Please pick one of:\n"+strings.Join(b.Catalog.IndustryKeys(), ", "))
		}
		return b.finishManagerRegistration(ctx, msg, conv, key)

	case stepFeedback:
		b.clearConversation(userID)
		if _, err := b.Feedback.Submit(ctx, domain.Feedback{
			UserID:      userID,
			DisplayName: strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName),
			Handle:      msg.From.Username,
			Message:     text,
		}); err != nil {
			return err
		}
		return b.reply(ctx, userID, "Thank you, your feedback reached the team.")
	}
	b.clearConversation(userID)
	return nil
}

func (b *BotLoop) finishWorkerRegistration(ctx context.Context, msg *telegram.IncomingMessage, conv *conversation) error {
	userID := msg.From.ID
	b.clearConversation(userID)
	if err := b.Identity.UpsertUser(ctx, domain.User{
		UserID:      userID,
		DisplayName: strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName),
		UILanguage:  conv.language,
		Gender:      conv.gender,
	}); err != nil {
		return err
	}
	if err := b.Identity.RegisterWorker(ctx, userID); err != nil {
		return err
	}
	if conv.inviteCode != "" {
		return b.redeemInvite(ctx, msg, conv.inviteCode)
	}
	return b.reply(ctx, userID, "You are set up. Open the invitation link your manager sent you to connect.")
}

func (b *BotLoop) finishManagerRegistration(ctx context.Context, msg *telegram.IncomingMessage, conv *conversation, industry string) error {
	userID := msg.From.ID
	b.clearConversation(userID)
	if err := b.Identity.UpsertUser(ctx, domain.User{
		UserID:      userID,
		DisplayName: strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName),
		UILanguage:  conv.language,
		Gender:      conv.gender,
	}); err != nil {
		return err
	}
	code, err := b.Identity.RegisterManager(ctx, userID, industry)
	if err != nil {
		return err
	}
	link := b.Connections.InviteLink(code, domain.MinBotSlot)
	return b.reply(ctx, userID, fmt.Sprintf(
		"You are set up. Your invitation code is %s.\nSend this link to your first worker:\n%s\nUse /add_worker when you need another.", code, link))
}

func (b *BotLoop) redeemInvite(ctx context.Context, msg *telegram.IncomingMessage, code string) error {
	userID := msg.From.ID
	conn, err := b.Connections.Redeem(ctx, userID, code, b.Slot)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrInvalidArgument):
		return b.reply(ctx, userID, "That invitation code does not work. Ask your manager for a fresh link.")
	case errors.Is(err, domain.ErrSlotOccupied):
		return b.reply(ctx, userID, "Your manager already has a worker on this bot. Ask them for a new link from /add_worker.")
	case errors.Is(err, domain.ErrWorkerAlreadyConnected):
		return b.reply(ctx, userID, "You are already connected to a manager. Send /disconnect first if you want to move.")
	default:
		return err
	}

	if err := b.reply(ctx, userID, "You are connected. Anything you type here reaches your manager, translated."); err != nil {
		return err
	}
	// Best effort, the bind already happened.
	if err := b.send(ctx, conn.BotSlot, conn.ManagerID, "Your worker just connected. Say hello!"); err != nil {
		slog.Warn("manager greeting not delivered", slog.Int64("manager_id", conn.ManagerID), slog.Any("error", err))
	}
	return nil
}

func (b *BotLoop) handleStatus(ctx context.Context, userID int64) error {
	role, err := b.Identity.Role(ctx, userID)
	if err != nil {
		return err
	}
	switch role {
	case domain.RoleManager:
		conns, err := b.Connections.ActiveForManager(ctx, userID)
		if err != nil {
			return err
		}
		sub, err := b.Subscriptions.Current(ctx, userID)
		if err != nil {
			return err
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "You are a manager with %d connected worker(s).\n", len(conns))
		for _, c := range conns {
			fmt.Fprintf(&sb, "- slot %d since %s\n", c.BotSlot, c.ConnectedAt.Format("2006-01-02"))
		}
		fmt.Fprintf(&sb, "Plan: %s.", sub.Status)
		return b.reply(ctx, userID, sb.String())
	case domain.RoleWorker:
		conn, err := b.Connections.ActiveForWorker(ctx, userID)
		if errors.Is(err, domain.ErrNotConnected) {
			return b.reply(ctx, userID, "You are a worker, not connected to a manager yet.")
		}
		if err != nil {
			return err
		}
		return b.reply(ctx, userID, fmt.Sprintf("You are connected to your manager on this bot since %s.", conn.ConnectedAt.Format("2006-01-02")))
	default:
		return b.reply(ctx, userID, "You are not registered yet. Send /start to begin.")
	}
}

func (b *BotLoop) handleTaskCreate(ctx context.Context, managerID int64, description string) error {
	if description == "" {
		return b.reply(ctx, managerID, "Write the task after the **, like: ** restock shelf 3")
	}
	task, conn, err := b.Tasks.Create(ctx, managerID, b.Slot, description)
	if errors.Is(err, domain.ErrNotConnected) {
		return b.reply(ctx, managerID, "No worker is connected on this bot, so there is nobody to assign this to.")
	}
	if errors.Is(err, domain.ErrTranslationFailed) {
		return b.reply(ctx, managerID, "Could not translate the task right now. Please try again.")
	}
	if err != nil {
		return err
	}
	if err := b.send(ctx, conn.BotSlot, conn.WorkerID, fmt.Sprintf("New task #%d:\n%s\nSend /done %d when finished.", task.TaskID, task.DescriptionTranslated, task.TaskID)); err != nil {
		slog.Warn("task announcement not delivered", slog.Int64("task_id", task.TaskID), slog.Any("error", err))
	}
	return b.reply(ctx, managerID, fmt.Sprintf("Task #%d created.", task.TaskID))
}

func (b *BotLoop) handleTaskDone(ctx context.Context, msg *telegram.IncomingMessage, arg string) error {
	userID := msg.From.ID
	taskID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || taskID <= 0 {
		return b.reply(ctx, userID, "Tell me which task: /done <number>")
	}
	task, conn, err := b.Tasks.Complete(ctx, userID, taskID)
	switch {
	case errors.Is(err, domain.ErrTaskAlreadyCompleted):
		return b.reply(ctx, userID, fmt.Sprintf("Task #%d is already done.", taskID))
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrNotFound):
		return b.reply(ctx, userID, fmt.Sprintf("Task #%d is not yours to complete.", taskID))
	case err != nil:
		return err
	}
	if err := b.send(ctx, conn.BotSlot, conn.ManagerID, fmt.Sprintf("Task #%d is done:\n%s", task.TaskID, task.Description)); err != nil {
		slog.Warn("completion notice not delivered", slog.Int64("task_id", task.TaskID), slog.Any("error", err))
	}
	return b.reply(ctx, userID, fmt.Sprintf("Task #%d marked done. Nice work.", task.TaskID))
}

func (b *BotLoop) handleTaskList(ctx context.Context, userID int64) error {
	role, err := b.Identity.Role(ctx, userID)
	if err != nil {
		return err
	}
	var tasks []domain.TaskWithCounterpart
	switch role {
	case domain.RoleManager:
		tasks, err = b.Tasks.ListForManager(ctx, userID)
	case domain.RoleWorker:
		tasks, err = b.Tasks.ListForWorker(ctx, userID)
	default:
		return b.reply(ctx, userID, "You are not registered yet. Send /start to begin.")
	}
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return b.reply(ctx, userID, "No open tasks.")
	}
	var sb strings.Builder
	for _, t := range tasks {
		desc := t.Description
		if role == domain.RoleWorker && t.DescriptionTranslated != "" {
			desc = t.DescriptionTranslated
		}
		mark := "open"
		if t.Status == domain.TaskCompleted {
			mark = "done"
		}
		fmt.Fprintf(&sb, "#%d [%s] %s\n", t.TaskID, mark, desc)
	}
	return b.reply(ctx, userID, strings.TrimRight(sb.String(), "\n"))
}

func (b *BotLoop) handleDaily(ctx context.Context, userID int64) error {
	role, err := b.Identity.Role(ctx, userID)
	if err != nil {
		return err
	}
	if role != domain.RoleManager {
		return b.reply(ctx, userID, "Only managers generate daily action items.")
	}
	items, count, err := b.Extraction.ForManager(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrNotConnected):
		return b.reply(ctx, userID, "You don't have a worker connected yet. Connect with a worker first to see action items.")
	case errors.Is(err, domain.ErrTranslationFailed):
		return b.reply(ctx, userID, "Could not generate action items right now. Please try again later.")
	case err != nil:
		return err
	}
	if count == 0 {
		return b.reply(ctx, userID, "Daily action items (last 24 hours):\n- none\n\nNo messages in the last 24 hours. Start a conversation with your worker to see action items here.")
	}
	if items == "" {
		items = "- none"
	}
	return b.reply(ctx, userID, fmt.Sprintf("Daily action items (last 24 hours):\n%s\n\nTotal messages: %d", items, count))
}

func (b *BotLoop) handleAddWorker(ctx context.Context, userID int64) error {
	role, err := b.Identity.Role(ctx, userID)
	if err != nil {
		return err
	}
	if role != domain.RoleManager {
		return b.reply(ctx, userID, "Only managers invite workers.")
	}
	slot, link, err := b.Connections.NextFreeSlot(ctx, userID)
	if errors.Is(err, domain.ErrSlotOccupied) {
		return b.reply(ctx, userID, "All five worker slots are in use. Disconnect one before inviting another worker.")
	}
	if err != nil {
		return err
	}
	return b.reply(ctx, userID, fmt.Sprintf("Send this link to your next worker (they will talk to bot %d):\n%s", slot, link))
}

func (b *BotLoop) handleDisconnect(ctx context.Context, userID int64) error {
	role, err := b.Identity.Role(ctx, userID)
	if err != nil {
		return err
	}
	switch role {
	case domain.RoleManager:
		conn, err := b.Connections.DisconnectManagerSlot(ctx, userID, b.Slot)
		if errors.Is(err, domain.ErrNotConnected) {
			return b.reply(ctx, userID, "No worker is connected on this bot.")
		}
		if err != nil {
			return err
		}
		if err := b.send(ctx, conn.BotSlot, conn.WorkerID, "Your manager has ended this connection."); err != nil {
			slog.Warn("disconnect notice not delivered", slog.Int64("worker_id", conn.WorkerID), slog.Any("error", err))
		}
		return b.reply(ctx, userID, "Disconnected the worker on this bot.")
	case domain.RoleWorker:
		conn, err := b.Connections.DisconnectWorker(ctx, userID)
		if errors.Is(err, domain.ErrNotConnected) {
			return b.reply(ctx, userID, "You are not connected to a manager.")
		}
		if err != nil {
			return err
		}
		if err := b.send(ctx, conn.BotSlot, conn.ManagerID, "Your worker has ended this connection."); err != nil {
			slog.Warn("disconnect notice not delivered", slog.Int64("manager_id", conn.ManagerID), slog.Any("error", err))
		}
		return b.reply(ctx, userID, "Disconnected. Open a new invitation link whenever you are ready.")
	default:
		return b.reply(ctx, userID, "You are not registered yet. Send /start to begin.")
	}
}

func (b *BotLoop) handleReset(ctx context.Context, userID int64) error {
	disconnected, err := b.Identity.ResetRole(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return b.reply(ctx, userID, "Nothing to reset. Send /start to register.")
	}
	if err != nil {
		return err
	}
	for _, conn := range disconnected {
		counterpart := conn.WorkerID
		if counterpart == userID {
			counterpart = conn.ManagerID
		}
		if err := b.send(ctx, conn.BotSlot, counterpart, "The other side has left this connection."); err != nil {
			slog.Warn("reset notice not delivered", slog.Int64("counterpart_id", counterpart), slog.Any("error", err))
		}
	}
	return b.reply(ctx, userID, "Your profile is cleared. Send /start to register again, in either role.")
}

func (b *BotLoop) handleSubscribe(ctx context.Context, userID int64) error {
	role, err := b.Identity.Role(ctx, userID)
	if err != nil {
		return err
	}
	if role != domain.RoleManager {
		return b.reply(ctx, userID, "Subscriptions are for managers; workers always message for free.")
	}
	entitled, err := b.Subscriptions.Entitled(ctx, userID)
	if err != nil {
		return err
	}
	if entitled {
		return b.reply(ctx, userID, "You already have unlimited messaging. /portal manages your billing.")
	}
	return b.reply(ctx, userID, fmt.Sprintf(
		"Unlimited messaging is $%.0f/month. Upgrade here:\n%s",
		b.Subscriptions.MonthlyPriceUSD, b.Subscriptions.CheckoutURL(userID)))
}

func (b *BotLoop) handlePortal(ctx context.Context, userID int64) error {
	url, err := b.Subscriptions.PortalURL(ctx, userID)
	if err != nil {
		return err
	}
	if url == "" {
		return b.reply(ctx, userID, "No billing portal yet. /subscribe sets up your subscription first.")
	}
	return b.reply(ctx, userID, "Manage your subscription here:\n"+url)
}

func (b *BotLoop) handleRelay(ctx context.Context, userID int64, role domain.Role, text string) error {
	res, err := b.Messages.Relay(ctx, userID, role, b.Slot, text)
	switch {
	case errors.Is(err, domain.ErrNotConnected):
		if role == domain.RoleManager {
			return b.reply(ctx, userID, "No worker is connected on this bot. /add_worker gets you an invitation link.")
		}
		return b.reply(ctx, userID, "You are not connected to a manager yet. Open the invitation link they sent you.")
	case errors.Is(err, domain.ErrWrongSlot):
		return b.reply(ctx, userID, "Your connection lives on another bot. Message your manager there.")
	case errors.Is(err, domain.ErrLimitReached):
		return b.reply(ctx, userID, fmt.Sprintf(
			"You reached the free limit of %d messages. Upgrade for unlimited messaging:\n%s",
			b.Cfg.FreeMessageLimit, b.Subscriptions.CheckoutURL(userID)))
	case errors.Is(err, domain.ErrTranslationFailed):
		return b.reply(ctx, userID, "Could not translate your message right now. Please try again in a moment.")
	case err != nil:
		return err
	}

	if !res.Delivered {
		if err := b.reply(ctx, userID, "Your message is saved but could not be delivered right now. It will show up in their history."); err != nil {
			return err
		}
	}
	if res.LastFree {
		return b.reply(ctx, userID, fmt.Sprintf(
			"That was your last free message. Upgrade to keep messaging:\n%s", b.Subscriptions.CheckoutURL(userID)))
	}
	return nil
}

// reply sends to the user through this loop's own slot.
func (b *BotLoop) reply(ctx context.Context, userID int64, text string) error {
	return b.send(ctx, b.Slot, userID, text)
}

// send dispatches through the transport bound to slot, which may belong to
// another bot (cross-bot notices).
func (b *BotLoop) send(ctx context.Context, slot int, userID int64, text string) error {
	t, ok := b.Transports.ForSlot(slot)
	if !ok {
		return fmt.Errorf("op=botloop.send: no transport for slot %d", slot)
	}
	sctx, cancel := context.WithTimeout(ctx, b.Cfg.TransportTimeout)
	defer cancel()
	return t.SendMessage(sctx, userID, text)
}

func (b *BotLoop) conversation(userID int64) *conversation {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending[userID]
}

func (b *BotLoop) setConversation(userID int64, conv *conversation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == nil {
		b.pending = make(map[int64]*conversation)
	}
	b.pending[userID] = conv
}

func (b *BotLoop) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pending, userID)
}
