package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	v1 "github.com/speechbot/speechbot/app/logic/v1"
	"github.com/speechbot/speechbot/app/response"
	"github.com/speechbot/speechbot/pkg/errors"
	"github.com/speechbot/speechbot/pkg/i18n"
	"github.com/speechbot/speechbot/pkg/types"
	"github.com/speechbot/speechbot/pkg/utils"
)

func chatIDFromPath(c *gin.Context) (string, bool) {
	chatID, _ := c.Params.Get("chat")
	if chatID == "" {
		response.APIError(c, errors.New("api.chatIDFromPath", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest))
		return "", false
	}
	return chatID, true
}

func messageIDFromPath(c *gin.Context) (string, bool) {
	messageID, _ := c.Params.Get("message")
	if messageID == "" {
		response.APIError(c, errors.New("api.messageIDFromPath", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest))
		return "", false
	}
	return messageID, true
}

func (s *HttpSrv) SendMessage(c *gin.Context) {
	chatID, ok := chatIDFromPath(c)
	if !ok {
		return
	}

	var req v1.SendMessageArgs
	if err := utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	msg, err := v1.NewMessageLogic(c, s.Core).SendMessage(chatID, req)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, msg)
}

type ListMessagesRequest struct {
	Before         string `json:"before" form:"before"`
	After          string `json:"after" form:"after"`
	Limit          uint64 `json:"limit" form:"limit"`
	Asc            bool   `json:"asc" form:"asc"`
	IncludeDeleted bool   `json:"include_deleted" form:"include_deleted"`
}

func (s *HttpSrv) ListMessages(c *gin.Context) {
	chatID, ok := chatIDFromPath(c)
	if !ok {
		return
	}

	var req ListMessagesRequest
	if err := utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	result, err := v1.NewHistoryLogic(c, s.Core).ListMessages(chatID, types.ListMessageOptions{
		BeforeID:       req.Before,
		AfterID:        req.After,
		Limit:          req.Limit,
		OrderAsc:       req.Asc,
		IncludeDeleted: req.IncludeDeleted,
	})
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, result)
}

type EditMessageRequest struct {
	Content string `json:"content" form:"content" binding:"required"`
}

func (s *HttpSrv) EditMessage(c *gin.Context) {
	chatID, ok := chatIDFromPath(c)
	if !ok {
		return
	}
	messageID, ok := messageIDFromPath(c)
	if !ok {
		return
	}

	var req EditMessageRequest
	if err := utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	msg, err := v1.NewMessageLogic(c, s.Core).EditMessage(chatID, messageID, req.Content)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, msg)
}

type DeleteMessageRequest struct {
	Hard bool `json:"hard" form:"hard"`
}

func (s *HttpSrv) DeleteMessage(c *gin.Context) {
	chatID, ok := chatIDFromPath(c)
	if !ok {
		return
	}
	messageID, ok := messageIDFromPath(c)
	if !ok {
		return
	}

	var req DeleteMessageRequest
	if err := utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	if err := v1.NewMessageLogic(c, s.Core).DeleteMessage(chatID, messageID, req.Hard); err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, response.EmptyStruct{})
}

type ReactionRequest struct {
	Emoji string `json:"emoji" form:"emoji" binding:"required"`
	Add   *bool  `json:"add" form:"add" binding:"required"`
}

type ReactionResponse struct {
	Reactions types.ReactionSet `json:"reactions"`
}

func (s *HttpSrv) React(c *gin.Context) {
	chatID, ok := chatIDFromPath(c)
	if !ok {
		return
	}
	messageID, ok := messageIDFromPath(c)
	if !ok {
		return
	}

	var req ReactionRequest
	if err := utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	reactions, err := v1.NewMessageLogic(c, s.Core).React(chatID, messageID, req.Emoji, *req.Add)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, ReactionResponse{Reactions: reactions})
}

type UpdateStatusRequest struct {
	Status types.MessageStatus `json:"status" form:"status" binding:"required"`
}

func (s *HttpSrv) UpdateMessageStatus(c *gin.Context) {
	chatID, ok := chatIDFromPath(c)
	if !ok {
		return
	}
	messageID, ok := messageIDFromPath(c)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	if err := v1.NewMessageLogic(c, s.Core).UpdateStatus(chatID, messageID, req.Status); err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, response.EmptyStruct{})
}

type MarkReadRequest struct {
	UptoMessageID string `json:"upto_message_id" form:"upto_message_id" binding:"required"`
}

type MarkReadResponse struct {
	Updated int64 `json:"updated"`
}

func (s *HttpSrv) MarkRead(c *gin.Context) {
	chatID, ok := chatIDFromPath(c)
	if !ok {
		return
	}

	var req MarkReadRequest
	if err := utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	updated, err := v1.NewMessageLogic(c, s.Core).MarkRead(chatID, req.UptoMessageID)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, MarkReadResponse{Updated: updated})
}

type TypingRequest struct {
	Typing *bool `json:"typing" form:"typing" binding:"required"`
}

func (s *HttpSrv) Typing(c *gin.Context) {
	chatID, ok := chatIDFromPath(c)
	if !ok {
		return
	}

	var req TypingRequest
	if err := utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	if err := v1.NewMessageLogic(c, s.Core).Typing(chatID, *req.Typing); err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, response.EmptyStruct{})
}

func (s *HttpSrv) StopGeneration(c *gin.Context) {
	chatID, ok := chatIDFromPath(c)
	if !ok {
		return
	}
	messageID, ok := messageIDFromPath(c)
	if !ok {
		return
	}

	if err := v1.NewStreamLogic(c, s.Core).StopGeneration(chatID, messageID); err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, response.EmptyStruct{})
}
