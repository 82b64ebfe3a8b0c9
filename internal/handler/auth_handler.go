// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"hrquery-go/internal/config"
	"hrquery-go/pkg/log"
	"hrquery-go/pkg/token"
)

// AuthHandler 负责服务账号的认证请求。
// 账号在配置文件中声明，密码以 bcrypt 散列保存，不落数据库。
type AuthHandler struct {
	accounts   []config.ServiceAccount
	jwtManager *token.JWTManager
}

// NewAuthHandler 创建一个新的 AuthHandler 实例。
func NewAuthHandler(accounts []config.ServiceAccount, jwtManager *token.JWTManager) *AuthHandler {
	return &AuthHandler{accounts: accounts, jwtManager: jwtManager}
}

// LoginRequest 定义了登录 API 的请求体结构。
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 校验服务账号并签发访问 token。
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Login: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载：username 和 password 不能为空"})
		return
	}

	account, ok := h.findAccount(req.Username)
	if !ok || bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)) != nil {
		log.Warnf("Login: Authentication failed for account '%s'", req.Username)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "用户名或密码错误"})
		return
	}

	accessToken, err := h.jwtManager.GenerateToken(account.Username, account.Role)
	if err != nil {
		log.Errorf("Login: Failed to generate token, error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token 签发失败"})
		return
	}

	log.Infof("Login: Account '%s' authenticated", account.Username)
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Login successful",
		"data": gin.H{
			"token": accessToken,
			"role":  account.Role,
		},
	})
}

func (h *AuthHandler) findAccount(username string) (config.ServiceAccount, bool) {
	for _, account := range h.accounts {
		if account.Username == username {
			return account, true
		}
	}
	return config.ServiceAccount{}, false
}
