package handler_test

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"

	"github.com/ddevcap/movie-catalog/api/handler"
)

var _ = Describe("UserHandler", func() {
	var router *gin.Engine

	BeforeEach(func() {
		router = gin.New()
		router.POST("/users", handler.NewUserHandler(db).CreateUser)
	})

	It("creates a user without exposing the password hash", func() {
		w := doPost(router, "/users", map[string]string{"username": "bob", "password": "longenough"})

		Expect(w.Code).To(Equal(http.StatusCreated))
		resp := decode(w)
		Expect(resp["username"]).To(Equal("bob"))
		Expect(resp["is_active"]).To(BeTrue())
		Expect(resp).NotTo(HaveKey("hashed_password"))

		u, err := db.UserByUsername(context.Background(), "bob")
		Expect(err).NotTo(HaveOccurred())
		Expect(bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte("longenough"))).To(Succeed())
	})

	It("returns 409 for a taken username", func() {
		createUser("bob", "longenough")

		w := doPost(router, "/users", map[string]string{"username": "bob", "password": "otherpass1"})
		Expect(w.Code).To(Equal(http.StatusConflict))
		Expect(decode(w)["error"]).To(Equal("Username already registered"))
	})

	It("returns 400 for a short password", func() {
		w := doPost(router, "/users", map[string]string{"username": "bob", "password": "short"})
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})
})
