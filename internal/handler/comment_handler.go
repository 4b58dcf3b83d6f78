package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/threadlog/internal/service"
)

// ListComments returns the assembled comment forest of a post.
func (a *API) ListComments(c *gin.Context) {
	forest, err := a.comments.Forest(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": forest})
}

func (a *API) CreateComment(c *gin.Context) {
	image, err := formFile(c, a.commentImageMaxBytes, "image")
	if err != nil {
		a.respondAppError(c, err)
		return
	}

	comment, err := a.comments.Create(c.Request.Context(), currentUserID(c), c.Param("id"), service.CommentInput{
		Content:         c.PostForm("content"),
		ParentCommentID: c.PostForm("parent_comment_id"),
	}, image)
	if err != nil {
		a.respondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Comment added", "comment": comment})
}

// UpdateComment 只修改请求中出现的字段；未提交 content 时保留原文。
func (a *API) UpdateComment(c *gin.Context) {
	image, err := formFile(c, a.commentImageMaxBytes, "image")
	if err != nil {
		a.respondAppError(c, err)
		return
	}

	update := service.CommentUpdate{RemoveImage: formBool(c, "remove_image")}
	if content, ok := c.GetPostForm("content"); ok {
		update.Content = &content
	}

	comment, err := a.comments.Update(c.Request.Context(), currentUserID(c), c.Param("id"), update, image)
	if err != nil {
		a.respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Comment updated", "comment": comment})
}

func (a *API) DeleteComment(c *gin.Context) {
	if err := a.comments.Delete(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		a.respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted"})
}
