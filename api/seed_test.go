package api_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"

	"github.com/ddevcap/movie-catalog/api"
	"github.com/ddevcap/movie-catalog/config"
)

var _ = Describe("SeedInitialUser", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Context("when no users exist and a password is configured", func() {
		It("creates the user with a valid password hash", func() {
			cfg := config.Config{
				InitialAdminUser:     "seedadmin",
				InitialAdminPassword: "seedpassword",
			}

			api.SeedInitialUser(ctx, db, cfg)

			count, err := db.CountUsers(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))

			u, err := db.UserByUsername(ctx, "seedadmin")
			Expect(err).NotTo(HaveOccurred())
			Expect(u.IsActive).To(BeTrue())
			Expect(bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte("seedpassword"))).To(Succeed())
		})
	})

	Context("when no users exist and InitialAdminPassword is empty", func() {
		It("skips seeding and leaves the table empty", func() {
			api.SeedInitialUser(ctx, db, config.Config{InitialAdminUser: "admin"})

			count, err := db.CountUsers(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(0))
		})
	})

	Context("when users already exist", func() {
		It("does not create an additional user", func() {
			_, err := db.CreateUser(ctx, "existing", "hash")
			Expect(err).NotTo(HaveOccurred())

			api.SeedInitialUser(ctx, db, config.Config{
				InitialAdminUser:     "admin",
				InitialAdminPassword: "password",
			})

			count, err := db.CountUsers(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))
		})
	})
})
