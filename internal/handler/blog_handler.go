package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/threadlog/internal/service"
)

var blogImageFields = []string{"images", "images[]"}

// ListBlogs returns the public feed.
func (a *API) ListBlogs(c *gin.Context) {
	blogs, err := a.blogs.Feed(c.Request.Context())
	if err != nil {
		a.respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blogs": blogs})
}

// GetBlog returns one post with images and rendered content.
func (a *API) GetBlog(c *gin.Context) {
	blog, err := a.blogs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blog": blog})
}

// ListMyBlogs 返回当前用户的文章列表，支持 page、page_size、search 参数。
func (a *API) ListMyBlogs(c *gin.Context) {
	result, err := a.blogs.ListMine(c.Request.Context(), currentUserID(c), service.BlogFilter{
		Search:   c.Query("search"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 0),
	})
	if err != nil {
		a.respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (a *API) CreateBlog(c *gin.Context) {
	files, err := formFiles(c, a.blogImageMaxBytes, blogImageFields...)
	if err != nil {
		a.respondAppError(c, err)
		return
	}

	blog, err := a.blogs.Create(c.Request.Context(), currentUserID(c), service.BlogInput{
		Title:   c.PostForm("title"),
		Content: c.PostForm("content"),
	}, files)
	if err != nil {
		a.respondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Post created", "blog": blog})
}

func (a *API) UpdateBlog(c *gin.Context) {
	files, err := formFiles(c, a.blogImageMaxBytes, blogImageFields...)
	if err != nil {
		a.respondAppError(c, err)
		return
	}

	blog, err := a.blogs.Update(c.Request.Context(), currentUserID(c), c.Param("id"), service.BlogInput{
		Title:   c.PostForm("title"),
		Content: c.PostForm("content"),
	}, files, formList(c, "remove_image_ids", "remove_image_ids[]"))
	if err != nil {
		a.respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post updated", "blog": blog})
}

func (a *API) DeleteBlog(c *gin.Context) {
	if err := a.blogs.Delete(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		a.respondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted"})
}
