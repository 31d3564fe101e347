package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"product-studio-ai/internal/gemini"
	"product-studio-ai/internal/mediagroup"
	"product-studio-ai/internal/session"
	"product-studio-ai/internal/studio"
	"product-studio-ai/internal/telegram"
)

// Messenger is the part of the Telegram client the handler talks to.
type Messenger interface {
	SendTyping(chatID int64)
	SendText(chatID int64, text string) error
	SendPhoto(chatID int64, filename string, data []byte, caption string) error
	SendDocument(chatID int64, filename string, data []byte, caption string) error
	DownloadFile(ctx context.Context, fileID string) ([]byte, string, error)
}

type Options struct {
	Telegram     Messenger
	Generator    studio.Generator
	Logger       *slog.Logger
	HistoryLimit int
	SessionTTL   time.Duration
}

type Handler struct {
	tg         Messenger
	sessions   *session.Store
	logger     *slog.Logger
	aggregator *mediagroup.Aggregator
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		tg:     opts.Telegram,
		logger: logger,
	}
	h.sessions = session.NewStore(session.Options{
		TTL: opts.SessionTTL,
		New: func(id string) *studio.Session {
			chatID, _ := strconv.ParseInt(id, 10, 64)
			return studio.New(studio.Options{
				Generator:    opts.Generator,
				Logger:       logger.With("chat_id", chatID),
				HistoryLimit: opts.HistoryLimit,
				OnChange: func(snap studio.NodeSnapshot) {
					h.deliver(chatID, snap)
				},
			})
		},
	})
	return h
}

func (h *Handler) SetMediaGroupAggregator(ag *mediagroup.Aggregator) {
	h.aggregator = ag
}

func (h *Handler) HandleUpdate(ctx context.Context, update telegram.Update) error {
	if update.Message == nil || update.Message.Chat == nil {
		return nil
	}

	msg := update.Message
	chatID := msg.Chat.ID
	var userID int64
	if msg.From != nil {
		userID = msg.From.ID
	}

	if msg.IsCommand() {
		return h.handleCommand(ctx, chatID, msg)
	}

	if fileID := imageFileID(msg); fileID != "" {
		if msg.MediaGroupID != "" && h.aggregator != nil {
			if h.aggregator.Add(mediagroup.Item{
				ChatID:       chatID,
				UserID:       userID,
				MediaGroupID: msg.MediaGroupID,
				Caption:      msg.Caption,
				FileID:       fileID,
			}) {
				return nil
			}
		}
		return h.setSource(ctx, chatID, fileID, "")
	}

	if strings.TrimSpace(msg.Text) != "" {
		return h.tg.SendText(chatID, "📷 Envíame una foto del producto o usa /help.")
	}
	return nil
}

// HandleMediaGroup keeps the first photo of an album as the source.
func (h *Handler) HandleMediaGroup(ctx context.Context, group mediagroup.Group) {
	if len(group.FileIDs) == 0 {
		return
	}
	note := ""
	if len(group.FileIDs) > 1 {
		note = fmt.Sprintf("ℹ️ Recibí %d fotos; uso solo la primera.\n", len(group.FileIDs))
	}
	if err := h.setSource(ctx, group.ChatID, group.FileIDs[0], note); err != nil {
		h.logger.Error("media group processing failed", "chat_id", group.ChatID, "err", err)
	}
}

func (h *Handler) handleCommand(ctx context.Context, chatID int64, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start", "help":
		return h.tg.SendText(chatID, helpText)
	case "plantillas":
		return h.tg.SendText(chatID, templatesText())
	case "generar":
		return h.generateAll(ctx, chatID)
	case "editar":
		return h.edit(ctx, chatID, args)
	case "historial":
		return h.history(chatID, args)
	case "restaurar":
		return h.revert(chatID, args)
	case "estado":
		return h.tg.SendText(chatID, statusText(h.session(chatID).Nodes()))
	case "descargar":
		return h.download(chatID, args)
	default:
		return h.tg.SendText(chatID, "❌ Comando desconocido. Usa /help.")
	}
}

func (h *Handler) session(chatID int64) *studio.Session {
	return h.sessions.GetOrCreate(strconv.FormatInt(chatID, 10))
}

func (h *Handler) setSource(ctx context.Context, chatID int64, fileID, note string) error {
	h.tg.SendTyping(chatID)

	data, mimeType, err := h.tg.DownloadFile(ctx, fileID)
	if err != nil {
		h.logger.Error("photo download failed", "chat_id", chatID, "err", err)
		return h.tg.SendText(chatID, "❌ No pude descargar la foto. Inténtalo de nuevo.")
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return h.tg.SendText(chatID, "❌ El archivo no es una imagen.")
	}

	src := studio.Source{
		DataBase64: base64.StdEncoding.EncodeToString(data),
		MimeType:   mimeType,
		Filename:   fileID,
	}
	if err := h.session(chatID).SetSource(src); err != nil {
		h.logger.Error("set source failed", "chat_id", chatID, "err", err)
		return h.tg.SendText(chatID, "❌ No pude usar esta foto.")
	}
	return h.tg.SendText(chatID, note+"✅ Foto del producto recibida. Usa /generar para crear las 6 variaciones.")
}

func (h *Handler) generateAll(ctx context.Context, chatID int64) error {
	run, err := h.session(chatID).StartAll(ctx)
	if errors.Is(err, studio.ErrNoSource) {
		return h.tg.SendText(chatID, noSourceText)
	}
	if err != nil {
		return err
	}

	started := run.NodeIDs()
	if len(started) == 0 {
		return h.tg.SendText(chatID, "⏳ Todas las variaciones se están generando todavía.")
	}

	h.tg.SendTyping(chatID)
	if err := h.tg.SendText(chatID, fmt.Sprintf("🎨 Generando %d variaciones, espera un momento...", len(started))); err != nil {
		h.logger.Error("send text failed", "chat_id", chatID, "err", err)
	}
	run.Wait()

	done := 0
	for _, id := range started {
		if snap, ok := h.session(chatID).Node(id); ok && snap.Status == studio.StatusCompleted {
			done++
		}
	}
	return h.tg.SendText(chatID, fmt.Sprintf("✅ Listo: %d de %d variaciones generadas.", done, len(started)))
}

func (h *Handler) edit(ctx context.Context, chatID int64, args string) error {
	ea, err := parseEditArgs(args)
	if err != nil {
		return h.tg.SendText(chatID, argError(err, "/editar <nodo> [zona] <instrucción>\nEjemplo: /editar 3 zona cambia el fondo a azul"))
	}

	h.tg.SendTyping(chatID)
	_, err = h.session(chatID).RunOne(ctx, ea.NodeID, ea.Instruction, ea.AreaSelected)
	return h.replyStudioError(chatID, err)
}

func (h *Handler) history(chatID int64, args string) error {
	nodeID, _, err := parseNodeArg(args)
	if err != nil {
		return h.tg.SendText(chatID, argError(err, "/historial <nodo>"))
	}

	snap, _ := h.session(chatID).Node(nodeID)
	if len(snap.History) == 0 {
		return h.tg.SendText(chatID, fmt.Sprintf("📭 %s no tiene versiones anteriores.", snap.Title))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🕘 Historial de %s:\n", snap.Title)
	for i, e := range snap.History {
		prompt := e.CustomPrompt
		if prompt == "" {
			prompt = "original"
		}
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, prompt, e.Timestamp.Format("15:04:05"))
	}
	fmt.Fprintf(&b, "\nUsa /restaurar %s <número> para recuperar una versión.", strings.TrimPrefix(nodeID, "node"))
	return h.tg.SendText(chatID, b.String())
}

func (h *Handler) revert(chatID int64, args string) error {
	nodeID, index, err := parseRevertArgs(args)
	if err != nil {
		return h.tg.SendText(chatID, argError(err, "/restaurar <nodo> <número>"))
	}

	_, err = h.session(chatID).Revert(nodeID, index)
	return h.replyStudioError(chatID, err)
}

func (h *Handler) download(chatID int64, args string) error {
	nodeID, _, err := parseNodeArg(args)
	if err != nil {
		return h.tg.SendText(chatID, argError(err, "/descargar <nodo>"))
	}

	dl, err := h.session(chatID).Download(nodeID)
	if err != nil {
		return h.replyStudioError(chatID, err)
	}
	return h.tg.SendDocument(chatID, dl.Filename, dl.Data, "")
}

// deliver reports a settled node to the chat.
func (h *Handler) deliver(chatID int64, snap studio.NodeSnapshot) {
	switch snap.Status {
	case studio.StatusCompleted:
		_, data, err := gemini.DecodeDataURL(snap.ImageURL)
		if err != nil {
			h.logger.Error("decode generated image failed", "chat_id", chatID, "node", snap.ID, "err", err)
			return
		}
		caption := "✅ " + snap.Title
		if snap.CustomPrompt != "" {
			caption += "\n✏️ " + snap.CustomPrompt
		}
		if err := h.tg.SendPhoto(chatID, studio.Filename(snap.Title, snap.ID), data, caption); err != nil {
			h.logger.Error("send photo failed", "chat_id", chatID, "node", snap.ID, "err", err)
		}
	case studio.StatusError:
		if err := h.tg.SendText(chatID, fmt.Sprintf("❌ %s: error al generar la imagen. Prueba /editar %s de nuevo.", snap.Title, strings.TrimPrefix(snap.ID, "node"))); err != nil {
			h.logger.Error("send text failed", "chat_id", chatID, "err", err)
		}
	}
}

func (h *Handler) replyStudioError(chatID int64, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, studio.ErrNoSource):
		return h.tg.SendText(chatID, noSourceText)
	case errors.Is(err, studio.ErrNodeBusy):
		return h.tg.SendText(chatID, "⏳ Ese nodo ya se está generando.")
	case errors.Is(err, studio.ErrHistoryIndex):
		return h.tg.SendText(chatID, "❌ Ese número no existe en el historial. Revisa /historial.")
	case errors.Is(err, studio.ErrNoImage):
		return h.tg.SendText(chatID, "📭 Ese nodo todavía no tiene imagen.")
	case errors.Is(err, studio.ErrUnknownNode):
		return h.tg.SendText(chatID, "❌ Nodo desconocido. Usa un número del 1 al 6.")
	default:
		h.logger.Error("studio request failed", "chat_id", chatID, "err", err)
		return h.tg.SendText(chatID, "❌ Algo salió mal. Inténtalo de nuevo.")
	}
}

func imageFileID(msg *tgbotapi.Message) string {
	if len(msg.Photo) > 0 {
		return msg.Photo[len(msg.Photo)-1].FileID
	}
	if msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/") {
		return msg.Document.FileID
	}
	return ""
}

func argError(err error, usage string) string {
	switch {
	case errors.Is(err, errBadNode):
		return "❌ Nodo desconocido. Usa un número del 1 al 6.\nUso: " + usage
	case errors.Is(err, errBadIndex):
		return "❌ Número de versión inválido.\nUso: " + usage
	default:
		return "Uso: " + usage
	}
}

const noSourceText = "📷 Primero envía una foto del producto."

const helpText = "📸 Estudio de producto\n\n" +
	"Envía una foto de tu producto y genero 6 variaciones profesionales.\n\n" +
	"Comandos:\n" +
	"/generar - Generar las 6 variaciones\n" +
	"/editar <nodo> [zona] <instrucción> - Regenerar un nodo con cambios\n" +
	"/historial <nodo> - Ver versiones anteriores\n" +
	"/restaurar <nodo> <número> - Recuperar una versión\n" +
	"/descargar <nodo> - Descargar la imagen como archivo\n" +
	"/estado - Estado de los nodos\n" +
	"/plantillas - Ver las plantillas"

func templatesText() string {
	var b strings.Builder
	b.WriteString("🧩 Plantillas:\n")
	for i, t := range studio.Templates() {
		fmt.Fprintf(&b, "%d. %s (%s) - %s\n", i+1, t.Title, t.AspectRatio, t.Description)
	}
	return b.String()
}

var statusIcons = map[studio.Status]string{
	studio.StatusIdle:       "⚪",
	studio.StatusProcessing: "⏳",
	studio.StatusCompleted:  "✅",
	studio.StatusError:      "❌",
}

func statusText(nodes []studio.NodeSnapshot) string {
	var b strings.Builder
	b.WriteString("📋 Estado:\n")
	for i, n := range nodes {
		fmt.Fprintf(&b, "%s %d. %s", statusIcons[n.Status], i+1, n.Title)
		if len(n.History) > 0 {
			fmt.Fprintf(&b, " (%d en historial)", len(n.History))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
