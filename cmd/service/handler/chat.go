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

func (s *HttpSrv) CreateChat(c *gin.Context) {
	var (
		err error
		req v1.CreateChatArgs
	)
	if err = utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	result, err := v1.NewChatLogic(c, s.Core).CreateChat(req)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, result)
}

func (s *HttpSrv) GetChat(c *gin.Context) {
	chatID, _ := c.Params.Get("chat")
	if chatID == "" {
		response.APIError(c, errors.New("api.GetChat", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest))
		return
	}

	chat, err := v1.NewChatLogic(c, s.Core).GetChat(chatID)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, chat)
}

type ListChatsRequest struct {
	Page     uint64 `json:"page" form:"page" binding:"required"`
	PageSize uint64 `json:"pagesize" form:"pagesize" binding:"required"`
	FolderID string `json:"folder_id" form:"folder_id"`
	Tag      string `json:"tag" form:"tag"`
	Favorite *bool  `json:"favorite" form:"favorite"`
	Archived *bool  `json:"archived" form:"archived"`
	Keyword  string `json:"keyword" form:"keyword"`
}

func (s *HttpSrv) ListChats(c *gin.Context) {
	var (
		err error
		req ListChatsRequest
	)
	if err = utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	result, err := v1.NewChatLogic(c, s.Core).ListChats(types.ListChatOptions{
		FolderID: req.FolderID,
		Tag:      req.Tag,
		Favorite: req.Favorite,
		Archived: req.Archived,
		Keyword:  req.Keyword,
	}, req.Page, req.PageSize)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, result)
}

func (s *HttpSrv) UpdateChat(c *gin.Context) {
	chatID, _ := c.Params.Get("chat")
	if chatID == "" {
		response.APIError(c, errors.New("api.UpdateChat", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest))
		return
	}

	var (
		err error
		req types.UpdateChatFields
	)
	if err = utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	chat, err := v1.NewChatLogic(c, s.Core).UpdateChat(chatID, req)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, chat)
}

type DeleteChatRequest struct {
	Confirm bool `json:"confirm" form:"confirm"`
}

func (s *HttpSrv) DeleteChat(c *gin.Context) {
	chatID, _ := c.Params.Get("chat")
	if chatID == "" {
		response.APIError(c, errors.New("api.DeleteChat", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest))
		return
	}

	var req DeleteChatRequest
	if err := utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	result, err := v1.NewChatLogic(c, s.Core).DeleteChat(chatID, req.Confirm)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, result)
}

type SearchChatsRequest struct {
	Keyword string `json:"keyword" form:"keyword" binding:"required"`
}

type SearchChatsResponse struct {
	List []types.SearchHit `json:"list"`
}

func (s *HttpSrv) SearchChats(c *gin.Context) {
	var req SearchChatsRequest
	if err := utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	list, err := v1.NewChatLogic(c, s.Core).SearchChats(req.Keyword)
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, SearchChatsResponse{List: list})
}

type ListFoldersResponse struct {
	List []types.FolderSummary `json:"list"`
}

func (s *HttpSrv) ListFolders(c *gin.Context) {
	list, err := v1.NewChatLogic(c, s.Core).ListFolders()
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, ListFoldersResponse{List: list})
}
