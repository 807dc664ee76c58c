package user

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func init() {
	jwtKey = []byte("helpers-test-secret")
}

func sampleUser() *User {
	return &User{
		ID:         primitive.NewObjectID(),
		Name:       "Asha Verma",
		Email:      "asha@college.edu",
		Role:       RoleStudent,
		Department: "CSE",
		Year:       "3",
		Course:     "B.Tech",
	}
}

func TestGenerateAndParseJWT(t *testing.T) {
	u := sampleUser()
	token, err := GenerateJWT(u, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ParseJWT(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID.Hex(), claims.UserID)
	assert.Equal(t, u.Name, claims.Name)
	assert.Equal(t, u.Email, claims.Email)
	assert.Equal(t, RoleStudent, claims.Role)
	assert.Equal(t, "CSE", claims.Department)
	assert.Equal(t, "3", claims.Year)
	assert.Equal(t, "B.Tech", claims.Course)
}

func TestParseJWTExpired(t *testing.T) {
	token, err := GenerateJWT(sampleUser(), -time.Minute)
	require.NoError(t, err)

	_, err = ParseJWT(token)
	assert.Error(t, err)
}

func TestParseJWTGarbage(t *testing.T) {
	_, err := ParseJWT("not-a-token")
	assert.Error(t, err)
}

func TestParseJWTWrongKey(t *testing.T) {
	token, err := GenerateJWT(sampleUser(), time.Hour)
	require.NoError(t, err)

	jwtKey = []byte("some-other-secret")
	defer func() { jwtKey = []byte("helpers-test-secret") }()

	_, err = ParseJWT(token)
	assert.Error(t, err)
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", hash)

	assert.True(t, CheckPasswordHash("s3cret-pass", hash))
	assert.False(t, CheckPasswordHash("wrong-pass", hash))
}

func TestValidRole(t *testing.T) {
	assert.True(t, ValidRole(RoleAdmin))
	assert.True(t, ValidRole(RoleFaculty))
	assert.True(t, ValidRole(RoleStudent))
	assert.False(t, ValidRole("registrar"))
	assert.False(t, ValidRole(""))
}
