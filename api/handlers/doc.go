// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 handlers 提供 HTTP 接口层：技能调用（异步与 SSE 流式）、
结果查询、触发器管理与健康检查。

# 概述

所有端点共享统一的响应结构（Response / ErrorInfo）与错误码到
HTTP 状态码的映射。调用者身份从 X-User-ID 请求头解析；认证
本身是外部关注点。

# 端点

  - POST /v1/skill/invoke        异步调用，返回 resultId
  - POST /v1/skill/streamInvoke  流式调用（SSE），以 usage 帧收尾
  - GET  /v1/skill/results       结果列表（过滤 + 分页 + 触发器联查）
  - GET  /v1/skill/results/{id}  单条结果
  - GET  /v1/skill/list          已安装技能
  - POST /v1/skill/triggers      批量创建触发器
  - GET  /v1/skill/triggers      触发器列表
  - PUT  /v1/skill/triggers      更新触发器
  - DELETE /v1/skill/triggers/{id}         删除（先取消调度）
  - POST /v1/skill/triggers/{id}/enable    启用
  - POST /v1/skill/triggers/{id}/disable   停用
*/
package handlers
