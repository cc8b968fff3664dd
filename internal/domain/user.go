package domain

// User 家庭成员（对应 users 表）
// 账号注册与登录由认证服务负责，这里只记录成员归属
type User struct {
	Email    string `db:"email" json:"email"` // VARCHAR, PRIMARY KEY
	Name     string `db:"name" json:"name"`
	FamilyID string `db:"family_id" json:"-"`
}
