package handler

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/crypto/bcrypt"

	"muro/domain"
)

var sanitizerStrict = bluemonday.StrictPolicy()

type credentials struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

func (h *Handler) Login(c echo.Context) error {
	creds := credentials{}
	if err := c.Bind(&creds); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Bad request."})
	}
	if len(creds.Username) == 0 || len(creds.Password) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Missing credentials."})
	}

	user := new(domain.User)
	row := h.DB.QueryRow("SELECT id, username, password FROM users WHERE username = $1", creds.Username)
	if row.Err() != nil {
		fmt.Println(row.Err().Error())
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Internal server error."})
	}

	var storedPassword string
	err := row.Scan(&user.ID, &user.Username, &storedPassword)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "User not found."})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Internal server error."})
	}
	err = bcrypt.CompareHashAndPassword([]byte(storedPassword), []byte(creds.Password))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Wrong password."})
	}

	cookie, err := authorizationCookie(user.ID, user.Username, h.JWTSecret)
	if err != nil {
		return err
	}

	c.SetCookie(cookie)
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

func (h *Handler) NewUser(c echo.Context) error {
	if h.Environment != "dev" && !h.EnableSignup {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "Sign up has been disabled."})
	}

	creds := credentials{}
	if err := c.Bind(&creds); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Bad request."})
	}
	if len(creds.Username) == 0 || len(creds.Password) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Missing credentials."})
	}

	user := domain.User{
		ID:       uuid.NewString(),
		Username: sanitizerStrict.Sanitize(creds.Username),
	}
	if err := user.ValidateUsername(); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid username."})
	}

	row := h.DB.QueryRow("SELECT COUNT(username) as count FROM users WHERE username = $1", user.Username)
	if row.Err() != nil {
		panic(row.Err().Error())
	}

	var count int
	row.Scan(&count)
	if count != 0 {
		return c.JSON(http.StatusConflict, echo.Map{"error": "Username already taken."})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	result, err := h.DB.Exec("INSERT INTO users (id, username, password, createdAt, updatedAt) VALUES ($1, $2, $3, $4, $5)", user.ID, user.Username, hashedPassword, time.Now().UTC(), time.Now().UTC())
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "User not created."})
	}

	cookie, err := authorizationCookie(user.ID, user.Username, h.JWTSecret)
	if err != nil {
		return err
	}

	c.SetCookie(cookie)
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

func (h *Handler) Logout(c echo.Context) error {
	cookie := new(http.Cookie)
	cookie.Name = "Authorization"
	cookie.Value = ""
	cookie.Path = "/"

	cookie.Expires = time.Now().Add(-1 * time.Second)
	c.SetCookie(cookie)
	return c.Redirect(http.StatusFound, "/login.html")
}

// Me reports the logged-in identity, or null for anonymous visitors.
func (h *Handler) Me(c echo.Context) error {
	session := SessionFromRequest(c.Request(), h.JWTSecret)
	if session == nil {
		return c.JSON(http.StatusOK, nil)
	}
	return c.JSON(http.StatusOK, session)
}
