package sdk

import "context"

// Register registers a new user
func (c *Client) Register(ctx context.Context, req *RegisterRequest) (*UserInfo, error) {
	var result UserInfo
	if err := c.post(ctx, "/auth/register", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Login authenticates and stores the returned token on the client
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	req := &LoginRequest{Email: email, Password: password}
	var result LoginResponse
	if err := c.post(ctx, "/auth/login", req, &result); err != nil {
		return nil, err
	}
	c.token = result.Token
	return &result, nil
}

// Logout invalidates the current token
func (c *Client) Logout(ctx context.Context) error {
	if err := c.post(ctx, "/auth/logout", nil, nil); err != nil {
		return err
	}
	c.token = ""
	return nil
}

// LogoutAll revokes every session of the current user, not just this one
func (c *Client) LogoutAll(ctx context.Context) error {
	if err := c.post(ctx, "/auth/logout_all", nil, nil); err != nil {
		return err
	}
	c.token = ""
	return nil
}
