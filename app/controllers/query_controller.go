package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/aihub/rag-go/app/bootstrap"
)

var validate = validator.New()

// QueryRequest 提问请求体
type QueryRequest struct {
	Question string `json:"question" validate:"required,min=1,max=2000"`
	TopK     int    `json:"top_k" validate:"omitempty,min=1,max=50"`
}

// QuerySource 单条溯源信息
type QuerySource struct {
	Source   string  `json:"source"`
	Distance float64 `json:"distance"`
}

// QueryController 问答控制器
type QueryController struct {
	BaseController
}

// Query 回答一个自然语言问题并附带溯源
func (c *QueryController) Query() {
	app := bootstrap.GetApp()
	if app == nil {
		c.JSONError(http.StatusInternalServerError, "服务未初始化")
		return
	}

	var req QueryRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "请求体不是合法JSON")
		return
	}
	if err := validate.Struct(&req); err != nil {
		c.JSONError(http.StatusBadRequest, "question为必填项，top_k范围1-50")
		return
	}

	result, err := app.Pipeline().Query(c.Ctx.Request.Context(), req.Question, req.TopK)
	if err != nil {
		// 生成服务故障时result仍带有可区分的降级回答
		if result == nil {
			c.JSONAppError(err)
			return
		}
	}

	sources := make([]QuerySource, 0, len(result.Retrieved))
	for _, m := range result.Retrieved {
		sources = append(sources, QuerySource{
			Source:   m.Metadata.Source,
			Distance: m.Distance,
		})
	}

	c.JSONSuccess(map[string]interface{}{
		"question": req.Question,
		"answer":   result.Answer,
		"sources":  sources,
	})
}
