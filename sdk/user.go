package sdk

import "context"

// GetSelf gets the current user's profile
func (c *Client) GetSelf(ctx context.Context) (*UserInfo, error) {
	var result UserInfo
	if err := c.get(ctx, "/user/info", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetUser gets another user's public profile
func (c *Client) GetUser(ctx context.Context, userId string) (*UserInfo, error) {
	var result UserInfo
	if err := c.get(ctx, "/user/info/"+userId, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateUser updates the current user's profile
func (c *Client) UpdateUser(ctx context.Context, req *UpdateUserRequest) error {
	return c.put(ctx, "/user/update", req, nil)
}
